package logging

import (
	"strings"
	"unicode"
)

// SanitizeForLog strips or escapes control characters from a string so it
// can be written into a log field, and truncates it to 200 characters. It
// is meant for values that originate from client input (bucket names,
// object keys, URLs).
func SanitizeForLog(s string) string {
	if s == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n':
			result.WriteString("\\n")
		case r == '\r':
			result.WriteString("\\r")
		case r == '\t':
			result.WriteString("\\t")
		case unicode.IsControl(r):
			result.WriteString("?")
		case r == '\\':
			result.WriteString("\\\\")
		case unicode.IsPrint(r):
			result.WriteRune(r)
		default:
			result.WriteString("?")
		}
	}

	const maxLength = 200
	if result.Len() > maxLength {
		return result.String()[:maxLength] + "...[truncated]"
	}

	return result.String()
}
