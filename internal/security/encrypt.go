package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const secretboxNonceSize = 24

var ErrDecryptFailed = errors.New("encrypted data is invalid or was tampered with")

// Encryptor protects sensitive attributes at rest (the user email) with
// nacl/secretbox. Output is base64(nonce || ciphertext).
type Encryptor struct {
	key [32]byte
}

// NewEncryptor expects a 64-character hex key. Generate one with
// `openssl rand -hex 32`.
func NewEncryptor(hexKey string) (*Encryptor, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
	}

	e := &Encryptor{}
	copy(e.key[:], raw)
	return e, nil
}

// GenerateEncryptionKey returns a fresh hex-encoded secretbox key.
func GenerateEncryptionKey() (string, error) {
	return RandomToken(32)
}

func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("cannot encrypt empty data")
	}

	var nonce [secretboxNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &e.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < secretboxNonceSize {
		return "", ErrDecryptFailed
	}

	var nonce [secretboxNonceSize]byte
	copy(nonce[:], raw[:secretboxNonceSize])

	plaintext, ok := secretbox.Open(nil, raw[secretboxNonceSize:], &nonce, &e.key)
	if !ok {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}
