package answer

import (
	"regexp"
	"strings"
)

var labelPattern = regexp.MustCompile(`(Name:|Department:|Rating:|Summary:|Additional Guidance:)`)

// FormatForDisplay strips bold markers and starts every recommendation label
// on its own line. It is meant for terminal output; streamed bodies stay raw.
func FormatForDisplay(content string) string {
	content = strings.ReplaceAll(content, "**", "")
	content = labelPattern.ReplaceAllString(content, "\n$1")
	return strings.TrimSpace(content)
}
