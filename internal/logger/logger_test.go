package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Init(false) })

	Init(false)
	Debug("hidden %d", 1)
	assert.NotContains(t, buf.String(), "hidden")

	Init(true)
	Debug("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestForAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	For("loader").Info("skipped file")
	assert.Contains(t, buf.String(), "component=loader")
	assert.Contains(t, buf.String(), "skipped file")
}
