package cryptox

import (
	"crypto/rand"
	"crypto/sha1" // #nosec G505 - fingerprinting only, never used for integrity
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken creates a cryptographically secure random token of the given
// byte length, returned as a base64url string without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns the SHA-256 hex digest of a token. Stores index
// records by this fingerprint so the plaintext token is never persisted.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ShortFingerprint returns the first 8 hex chars of the SHA-256 digest.
// Safe to log where the full token must not appear.
func ShortFingerprint(token string) string {
	return FingerprintToken(token)[:8]
}

// HashUserAgent returns a SHA-1 hex digest of a user-agent string. Collisions
// are acceptable here; the hash only anonymises the stored value.
func HashUserAgent(ua string) string {
	sum := sha1.Sum([]byte(ua)) // #nosec G401
	return hex.EncodeToString(sum[:])
}
