package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by CardSealer. Stored card tokens without
// it predate encryption and are returned unchanged.
const sealedPrefix = "v1:"

var ErrSealedValue = errors.New("sealed value is corrupt")

// CardSealer encrypts card tokens at rest with AES-GCM and a random nonce per value.
type CardSealer struct {
	gcm cipher.AEAD
}

// NewCardSealer accepts a 16, 24 or 32 byte key (AES-128/192/256).
func NewCardSealer(key string) (*CardSealer, error) {
	k := []byte(key)
	switch len(k) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", len(k))
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &CardSealer{gcm: gcm}, nil
}

// Encrypt returns "v1:" + base64(nonce || ciphertext).
func (s *CardSealer) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(ct), nil
}

func (s *CardSealer) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedValue, err)
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return "", ErrSealedValue
	}
	pt, err := s.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedValue, err)
	}
	return string(pt), nil
}
