package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken creates a cryptographically secure random token of the specified byte length.
// The token is returned as a base64url-encoded string (URL-safe, no padding).
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

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// base64url-encoded (43 chars). The admin API key is held only as its
// fingerprint.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MatchFingerprint reports whether token hashes to fingerprint. The
// comparison is constant-time over fixed-length digests.
func MatchFingerprint(token, fingerprint string) bool {
	got := FingerprintToken(token)
	return subtle.ConstantTimeCompare([]byte(got), []byte(fingerprint)) == 1
}

// ParseSecret decodes secret material from configuration. Values prefixed
// with "base64:" or "hex:" are decoded, anything else is taken verbatim.
// The decoded secret must be at least minLen bytes.
func ParseSecret(value string, minLen int) ([]byte, error) {
	if value == "" {
		return nil, errors.New("secret is empty")
	}

	var (
		secret []byte
		err    error
	)
	switch {
	case strings.HasPrefix(value, "base64:"):
		secret, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "base64:"))
	case strings.HasPrefix(value, "hex:"):
		secret, err = hex.DecodeString(strings.TrimPrefix(value, "hex:"))
	default:
		secret = []byte(value)
	}
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}

	if len(secret) < minLen {
		return nil, fmt.Errorf("secret must be at least %d bytes, got %d", minLen, len(secret))
	}
	return secret, nil
}
