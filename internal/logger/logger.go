package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init configures the process logger. Output goes to stderr so stdout
// stays free for command output and the MCP stdio transport.
func Init(debug bool) {
	if debug {
		log.SetLevel(logrus.DebugLevel)
		Debug("Debug logging enabled")
		return
	}
	log.SetLevel(logrus.InfoLevel)
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// For returns an entry tagged with the given component name.
func For(component string) *logrus.Entry {
	return log.WithField("component", component)
}

// Debug logs a debug message if debug mode is enabled
func Debug(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

// Info logs an info message
func Info(format string, v ...interface{}) {
	log.Infof(format, v...)
}

// Warn logs a warning
func Warn(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

// Error logs an error message
func Error(format string, v ...interface{}) {
	log.Errorf(format, v...)
}
