package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// entropyBytes is the size of every generated secret (256 bits).
const entropyBytes = 32

// NewRandom returns a cryptographically random, URL-safe token with 256 bits of entropy.
func NewRandom() (string, error) {
	b := make([]byte, entropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// S256Challenge derives the PKCE code challenge for a verifier: base64url(sha256(verifier)).
func S256Challenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
