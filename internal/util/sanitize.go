package util

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\s]+`)
	repeatedSpace        = regexp.MustCompile(`\s+`)
)

const maxFilenameRunes = 128

// CleanText strips control and invisible characters from user-supplied
// labels and collapses runs of whitespace. Product and invoice line names
// pass through it before validation.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(' ')
			continue
		}
		if unicode.IsControl(r) || isInvisibleUnicode(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(repeatedSpace.ReplaceAllString(b.String(), " "))
}

// SafeFilename turns name into a download filename safe for a
// Content-Disposition header. fallback is used when nothing survives.
func SafeFilename(name string, fallback string) string {
	cleaned := invalidFilenameChars.ReplaceAllString(CleanText(name), "_")
	cleaned = strings.Trim(cleaned, "._")

	runes := []rune(cleaned)
	if len(runes) > maxFilenameRunes {
		runes = runes[:maxFilenameRunes]
	}
	cleaned = string(runes)

	if cleaned == "" {
		return fallback
	}
	return cleaned
}

// isInvisibleUnicode reports zero-width and other format characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u2060', // Word Joiner
		'\uFEFF': // BOM
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
