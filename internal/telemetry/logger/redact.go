package logger

import (
	"log/slog"
	"strings"
)

// Value prefixes that identify stored password verifiers.
var sensitiveValuePrefixes = []string{
	"$argon2id$",
}

// Attribute names whose values are never logged. Store keys ("key") are
// ordinary data and must not match.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"verifier",
	"credential",
	"auth",
	"token",
}

const redactedValue = "***REDACTED***"

// redactSensitive masks verifier-looking values and the values of
// sensitive attribute names. Groups are handled recursively.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()
		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(strVal, prefix) {
				return slog.String(a.Key, maskValue(prefix))
			}
		}

		if strVal != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// maskValue keeps the prefix and hides the rest.
func maskValue(prefix string) string {
	return prefix + "***"
}

// RedactString masks a verifier string and returns anything else as is.
func RedactString(value string) string {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return maskValue(prefix)
		}
	}
	return value
}

// RedactCredentials masks the password half of a "username:password"
// payload. A payload without a colon is fully redacted.
func RedactCredentials(payload string) string {
	user, _, ok := strings.Cut(payload, ":")
	if !ok {
		if payload == "" {
			return ""
		}
		return redactedValue
	}
	return user + ":***"
}

// IsSensitiveKey checks if an attribute name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value looks like a password verifier.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
