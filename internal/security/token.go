package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// APIKeyPrefix identifies keys issued by this service. The prefix plus the
// first few characters of the secret are the only displayable remnant once
// the key is stored.
const APIKeyPrefix = "ng_"

// RandomToken returns size random bytes hex-encoded.
func RandomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateAPIKey returns a fresh raw API key. The raw value is shown to the
// caller exactly once; only HashToken of it is ever persisted.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken produces the storable SHA-256 digest of a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeCompare compares two strings without leaking the mismatch
// position through timing.
func ConstantTimeCompare(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
