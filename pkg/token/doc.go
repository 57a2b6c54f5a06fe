// Package token provides preview token generation and keyed hashing.
//
// Token Format:
//
//   - Prefix: pvt_ (4 characters)
//   - Body: 43 characters of Base64 RawURL encoded random bytes (256 bits)
//   - Total: 47 characters
//
// Token Hash Format:
//
//   - Prefix: pvh_ (4 characters)
//   - Body: 64 characters of hex-encoded HMAC-SHA256
//   - Total: 68 characters
//
// Security:
//
//   - Uses crypto/rand for CSPRNG and never falls back to a weaker source
//   - HMAC-SHA256 keyed with a server secret, key derived via HKDF
//   - Constant-time comparison on verification
//   - Raw tokens are never stored, only hashes
package token
