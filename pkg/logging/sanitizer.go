package logging

import (
	"regexp"
)

const (
	// MaxBodyLogLength is the maximum length of an upstream response body to log
	MaxBodyLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match Notion integration and OAuth tokens (secret_xxx, ntn_xxx)
	notionTokenPattern = regexp.MustCompile(`\b(secret|ntn)_[A-Za-z0-9]{10,}`)

	// Pattern to match bearer and basic authorization values
	authHeaderPattern = regexp.MustCompile(`(?i)\b(Bearer|Basic)\s+[A-Za-z0-9\-_.=+/]+`)

	// Pattern to match secrets passed as key=value pairs
	// Matches: password=xxx, client_secret=xxx, access_token=xxx (until next delimiter)
	secretParamPattern = regexp.MustCompile(`(?i)(password|pwd|client_secret|access_token|code)=[^;&\s"]+`)

	// Pattern to match JSON members that carry secrets
	secretJSONPattern = regexp.MustCompile(`(?i)"(access_token|accessToken|client_secret|clientSecret)"\s*:\s*"[^"]*"`)
)

// SanitizeToken masks an access token for logging, keeping only a short
// suffix to tell tokens apart.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return RedactedText
	}
	return RedactedText + "..." + token[len(token)-4:]
}

// SanitizeError sanitizes error messages that might contain sensitive data
// Use this before logging any error from upstream calls
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText removes tokens and secrets from arbitrary text.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}

	sanitized := authHeaderPattern.ReplaceAllString(s, "${1} "+RedactedText)
	sanitized = notionTokenPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = secretParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = secretJSONPattern.ReplaceAllString(sanitized, `"${1}":"`+RedactedText+`"`)

	return sanitized
}

// SanitizeBody truncates and sanitizes an upstream response body for logging
func SanitizeBody(body []byte) string {
	return TruncateString(SanitizeText(string(body)), MaxBodyLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
