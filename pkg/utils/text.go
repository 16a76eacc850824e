package utils

import "strings"

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims
// leading/trailing whitespace.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripTerminalPunctuation removes trailing '?', '.', '!', ',', ';' and ':'
// characters from s.
func StripTerminalPunctuation(s string) string {
	return strings.TrimRight(s, "?.!,;:")
}
