package validation

import (
	"strings"
	"unicode/utf8"
)

// Ellipsis is appended by Truncate when text was shortened.
const Ellipsis = "..."

// CleanText collapses every whitespace run into a single space and trims the ends.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Length returns the number of characters in text.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate shortens text to at most limit characters, cutting at the last
// word boundary when there is one and appending Ellipsis.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 0 {
		return ""
	}

	marker := []rune(Ellipsis)
	if limit <= len(marker) {
		return string(marker[:limit])
	}

	cut := string(runes[:limit-len(marker)])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}

	return strings.TrimRight(cut, " ") + Ellipsis
}
