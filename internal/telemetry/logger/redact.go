package logger

import (
	"log/slog"
	"regexp"
	"strings"
)

// botTokenPattern matches a Bot API token: numeric bot id, colon, secret.
var botTokenPattern = regexp.MustCompile(`(\d{5,}):([A-Za-z0-9_-]{30,})`)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"api_key",
	"apikey",
	"bot_token",
	"credential",
	"auth",
	"bearer",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if IsSensitiveValue(strVal) {
			return slog.String(a.Key, RedactString(strVal))
		}

	case slog.KindAny:
		// Transport errors quote the request URL, which carries the token.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			msg := err.Error()
			if IsSensitiveValue(msg) {
				return slog.String(a.Key, RedactString(msg))
			}
		}

	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue partially masks a secret.
// Format: first 3 chars + "..." + last 3 chars
func maskValue(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "..." + value[len(value)-3:]
}

// RedactString masks every bot token inside value, keeping the bot id.
// Use this when you need to redact a value before logging.
func RedactString(value string) string {
	return botTokenPattern.ReplaceAllStringFunc(value, func(tok string) string {
		m := botTokenPattern.FindStringSubmatch(tok)
		return m[1] + ":" + maskValue(m[2])
	})
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value contains a bot token.
func IsSensitiveValue(value string) bool {
	return botTokenPattern.MatchString(value)
}
