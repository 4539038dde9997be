package util

import "strings"

// SanitizeText strips invalid UTF-8 and embedded NUL bytes before a value
// crosses into SQLite TEXT storage, which rejects the latter outright.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
