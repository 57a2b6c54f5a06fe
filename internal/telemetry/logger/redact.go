package logger

import (
	"log/slog"
	"strings"
)

// Sensitive value prefixes that are partially masked.
var sensitiveValuePrefixes = []string{
	"pvt_", // raw preview token
}

// Sensitive key patterns whose values are fully redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"api_key",
	"apikey",
	"credential",
	"authorization",
	"bearer",
	"raw_token",
	"dsn",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()

		// Value prefixes take priority over key-based detection.
		if masked, ok := maskEmbedded(strVal); ok {
			return slog.String(a.Key, masked)
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

// maskEmbedded masks every sensitive token found in value, e.g. the token
// segment of a preview URL.
func maskEmbedded(value string) (string, bool) {
	changed := false
	for _, prefix := range sensitiveValuePrefixes {
		var b strings.Builder
		rest := value
		for {
			i := strings.Index(rest, prefix)
			if i < 0 {
				b.WriteString(rest)
				break
			}
			end := i + len(prefix)
			for end < len(rest) && isTokenByte(rest[end]) {
				end++
			}
			b.WriteString(rest[:i])
			b.WriteString(maskValue(rest[i:end], prefix))
			rest = rest[end:]
			changed = true
		}
		value = b.String()
	}
	return value, changed
}

func isTokenByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

// maskValue partially masks a sensitive value, keeping prefix and hints.
// Format: prefix + first 3 chars + "..." + last 3 chars
func maskValue(value, prefix string) string {
	if len(value) <= len(prefix)+6 {
		return prefix + "***"
	}

	body := value[len(prefix):]
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString manually redacts a string value.
// Use this when you need to redact a value before logging.
func RedactString(value string) string {
	masked, _ := maskEmbedded(value)
	return masked
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

// IsSensitiveValue checks if a value appears to be sensitive.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.Contains(value, prefix) {
			return true
		}
	}
	return false
}
