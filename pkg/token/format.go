package token

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// ValidateFormat reports whether s looks like a raw preview token.
func ValidateFormat(s string) bool {
	if len(s) != Length || !strings.HasPrefix(s, Prefix) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s[len(Prefix):])
	return err == nil
}

// ValidateHashFormat reports whether s looks like a stored token hash.
func ValidateHashFormat(s string) bool {
	if len(s) != HashLength || !strings.HasPrefix(s, HashPrefix) {
		return false
	}
	body := s[len(HashPrefix):]
	if strings.ToLower(body) != body {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}

// Mask masks a token for safe display.
// Example: pvt_ABC...xyz
func Mask(s string) string {
	for _, prefix := range []string{Prefix, HashPrefix} {
		if strings.HasPrefix(s, prefix) {
			body := s[len(prefix):]
			if len(body) > 6 {
				return prefix + body[:3] + "..." + body[len(body)-3:]
			}
			return prefix + "***"
		}
	}
	return "***REDACTED***"
}
