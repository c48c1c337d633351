package utils

import (
	"regexp"
	"strings"
)

const maxFilenameLength = 100

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]+`)
	underscoreRuns      = regexp.MustCompile(`_{2,}`)
)

// SanitizeFilename turns a collection key into a single path component.
// Separators and characters that are invalid on common filesystems become "_",
// the result is capped at maxFilenameLength bytes, and an empty result becomes "untitled".
func SanitizeFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(name, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_ ")

	if len(s) > maxFilenameLength {
		s = strings.Trim(s[:maxFilenameLength], "_ ")
	}
	if s == "" {
		return "untitled"
	}
	return s
}
