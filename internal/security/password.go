// Package security provides password hashing and session token helpers.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 48000
	keyBytes         = 32
	saltBytes        = 16
	tokenBytes       = 24
)

// HashPassword derives a PBKDF2-HMAC-SHA256 hash of password. When salt is
// empty a fresh random salt is generated. Both return values are URL-safe
// base64 text.
func HashPassword(password, salt string) (string, string, error) {
	if salt == "" {
		raw := make([]byte, saltBytes)
		if _, err := rand.Read(raw); err != nil {
			return "", "", fmt.Errorf("generate salt: %w", err)
		}
		salt = base64.URLEncoding.EncodeToString(raw)
	}
	dk := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, keyBytes, sha256.New)
	return base64.URLEncoding.EncodeToString(dk), salt, nil
}

// VerifyPassword recomputes the hash and compares in constant time.
func VerifyPassword(password, passwordHash, salt string) bool {
	computed, _, err := HashPassword(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(passwordHash)) == 1
}

// NewSessionToken returns an unguessable, URL-safe opaque token.
func NewSessionToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}
