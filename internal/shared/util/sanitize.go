package util

import (
	"regexp"
	"strings"
)

const maxLogText = 300

var secretPattern = regexp.MustCompile(`(?i)(bearer\s+[a-z0-9._\-]+|sk-[a-z0-9_\-]{8,})`)

// SanitizeLogText collapses whitespace, redacts credentials and caps the length
// of upstream error text before it reaches the logs.
func SanitizeLogText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = secretPattern.ReplaceAllString(s, "[redacted]")
	return TruncateRunes(s, maxLogText)
}

// SanitizeError is SanitizeLogText for an error; nil yields "".
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeLogText(err.Error())
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
