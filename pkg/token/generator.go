package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// Prefix marks a raw preview token.
	Prefix = "pvt_"

	// DefaultLength is the default token length in bytes.
	DefaultLength = 32

	// MinLength is the smallest accepted byte length (128 bits).
	MinLength = 16

	// BodyLength is the encoded body length for DefaultLength bytes.
	BodyLength = 43

	// Length is the total raw token length.
	Length = len(Prefix) + BodyLength
)

// Generate generates a cryptographically secure prefixed preview token.
func Generate() (string, error) {
	body, err := GenerateWithLength(DefaultLength)
	if err != nil {
		return "", err
	}
	return Prefix + body, nil
}

// GenerateWithLength generates an unprefixed Base64 RawURL token of the
// given byte length. Lengths below MinLength are rejected.
func GenerateWithLength(length int) (string, error) {
	bytes, err := GenerateBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateBytes generates random bytes.
func GenerateBytes(length int) ([]byte, error) {
	if length < MinLength {
		return nil, fmt.Errorf("token: length %d below minimum %d", length, MinLength)
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return nil, fmt.Errorf("token: read random: %w", err)
	}
	return bytes, nil
}
