// Package signer produces keyed HMAC-SHA256 signatures over string payloads.
//
// A Signer holds an immutable copy of the secret key and is safe for
// concurrent use. Verification always recomputes the signature and compares
// in constant time.
package signer

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// KeySize is the length of keys produced by GenerateKey.
const KeySize = 32

var ErrEmptyKey = errors.New("signer: secret key is empty")

type Signer struct {
	key []byte
}

func New(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptyKey
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{key: key}, nil
}

// Sign returns the raw MAC of payload.
func (s *Signer) Sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// SignHex renders the MAC as lower-case hex.
func (s *Signer) SignHex(payload string) string {
	return hex.EncodeToString(s.Sign(payload))
}

// SignBase64URL renders the MAC as unpadded URL-safe base64.
func (s *Signer) SignBase64URL(payload string) string {
	return base64.RawURLEncoding.EncodeToString(s.Sign(payload))
}

func (s *Signer) Verify(payload string, signature []byte) bool {
	return hmac.Equal(s.Sign(payload), signature)
}

func (s *Signer) VerifyHex(payload, signature string) bool {
	return constantTimeEqual(s.SignHex(payload), signature)
}

func (s *Signer) VerifyBase64URL(payload, signature string) bool {
	return constantTimeEqual(s.SignBase64URL(payload), signature)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateKey returns KeySize random bytes encoded as URL-safe base64.
func GenerateKey() (string, error) {
	buf := make([]byte, KeySize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
