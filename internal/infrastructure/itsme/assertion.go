package itsme

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/go-eid-verify/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

const (
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionLifetime   = 5 * time.Minute
)

// AssertionSigner signs private_key_jwt client assertions for the token endpoint.
type AssertionSigner struct {
	key      *rsa.PrivateKey
	keyID    string
	clientID string
	audience string
	now      func() time.Time
}

// LoadAssertionSigner reads a PEM encoded RSA private key from path.
func LoadAssertionSigner(path, keyID, clientID, tokenURL string) (*AssertionSigner, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(b)
	if err != nil {
		return nil, fmt.Errorf("parse client private key: %w", err)
	}
	return NewAssertionSigner(key, keyID, clientID, tokenURL), nil
}

func NewAssertionSigner(key *rsa.PrivateKey, keyID, clientID, tokenURL string) *AssertionSigner {
	return &AssertionSigner{key: key, keyID: keyID, clientID: clientID, audience: tokenURL, now: time.Now}
}

// Sign returns a fresh single-use assertion.
func (s *AssertionSigner) Sign() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.clientID,
		Subject:   s.clientID,
		Audience:  jwt.ClaimStrings{s.audience},
		ID:        id.New(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign client assertion: %w", err)
	}
	return signed, nil
}
