// Package redact strips credentials and personal data from strings before
// they reach logs or error responses. Connection URLs for Postgres,
// RabbitMQ and Redis, bearer tokens, JWTs and summarization API keys can all
// surface in wrapped driver and HTTP client errors.
package redact

import "regexp"

// Placeholders substituted for redacted values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules apply in order. URL credentials go first so the userinfo of a
// connection string is not mistaken for an email address.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)\b(postgres(?:ql)?|amqps?|rediss?|https?)://[^/\s:@]+:[^@\s]+@`),
		"$1://" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._~+/=-]+`),
		"Bearer " + RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	// Hugging Face access tokens.
	{regexp.MustCompile(`\bhf_[A-Za-z0-9]{16,}\b`), RedactedKeyPlaceholder},
	// Google API keys.
	{regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`), RedactedKeyPlaceholder},
	{
		regexp.MustCompile(`(?i)\b(password|passwd|api[_-]?key|secret|token)=[^\s&"']+`),
		"$1=" + RedactionPlaceholder,
	},
	{
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		RedactedEmailPlaceholder,
	},
}

// String redacts sensitive values from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.replacement)
	}
	return s
}

// Error redacts sensitive values from err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
