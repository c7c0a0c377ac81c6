package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/sessfile-go/pkg/token"
)

// Attribute keys whose value is a session id. They are replaced by the id
// fingerprint so one session can still be followed across log lines.
var sessionIDKeys = []string{
	"session_id",
	"sid",
}

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
	"cookie",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive masks session ids and redacts values of sensitive keys.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}
	val := a.Value.String()
	if val == "" {
		return a
	}

	if IsSessionIDKey(a.Key) {
		return slog.String(a.Key, MaskSessionID(val))
	}
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// MaskSessionID returns the loggable form of a session id.
func MaskSessionID(id string) string {
	if id == "" {
		return ""
	}
	return "fp:" + token.Fingerprint(id)
}

// IsSessionIDKey reports whether key names a session id attribute.
func IsSessionIDKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, k := range sessionIDKeys {
		if keyLower == k {
			return true
		}
	}
	return false
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
