package logging

import (
	"regexp"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// MaxBodyLogLength caps how much of an oracle response body is logged.
	MaxBodyLogLength = 200
	// RedactedText replaces every secret.
	RedactedText = "[REDACTED]"
)

// redactions are applied in order by Redact.
var redactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// password=xxx in key/value DSNs and query strings
	{regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`), "${1}=" + RedactedText},
	// user:pass@ in postgres:// and redis:// URLs
	{regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`), "://" + RedactedText + "@"},
	// bearer JWTs
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`), "Bearer " + RedactedText},
}

// Redact removes passwords, URL credentials and bearer tokens from s.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// RedactedError is zap.Error with secrets stripped from the message.
// Driver errors sometimes echo the DSN back.
func RedactedError(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", Redact(err.Error()))
}

// TruncateString shortens s to at most maxLen bytes, without splitting a
// UTF-8 sequence, and marks the cut with "...".
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
