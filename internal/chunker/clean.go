package chunker

import (
	"regexp"
	"strings"
)

// disallowed matches everything outside letters, marks and digits of any
// script, underscore, whitespace and the punctuation kept in statute text.
// RE2's \s is ASCII only, so Unicode separators (NBSP, thin space) and the
// remaining Unicode White_Space controls are listed explicitly.
var disallowed = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Z}\v\x{85}.,!?;:\-()\[\]"'«»]+`)

// Clean strips disallowed characters and collapses whitespace runs into a
// single space. Stripping happens first so removed symbols never leave
// doubled spaces behind.
func Clean(text string) string {
	text = disallowed.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
