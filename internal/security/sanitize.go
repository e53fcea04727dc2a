package security

import (
	"regexp"
	"strings"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	htmlTags     = regexp.MustCompile(`<[^>]*>`)
)

// SanitizeInput strips markup, control characters and redundant whitespace
// from untrusted free-text input.
func SanitizeInput(text string) string {
	text = htmlTags.ReplaceAllString(text, "")
	text = controlChars.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
