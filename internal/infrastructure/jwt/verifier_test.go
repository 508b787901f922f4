package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, key *rsa.PrivateKey, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}), 0o600))

	v, err := LoadVerifier(path)
	require.NoError(t, err)

	valid := Claims{UserID: "acc-1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	claims, err := v.Verify(sign(t, key, valid))
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID())

	subOnly := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-2", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	claims, err = v.Verify(sign(t, key, subOnly))
	require.NoError(t, err)
	assert.Equal(t, "acc-2", claims.AccountID())

	expired := Claims{UserID: "acc-1", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}}
	_, err = v.Verify(sign(t, key, expired))
	assert.Error(t, err)

	noExp := Claims{UserID: "acc-1"}
	_, err = v.Verify(sign(t, key, noExp))
	assert.Error(t, err)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = v.Verify(sign(t, other, valid))
	assert.Error(t, err)

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, valid).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Verify(hs)
	assert.Error(t, err)
}

func TestLoadVerifier_MissingFile(t *testing.T) {
	_, err := LoadVerifier(filepath.Join(t.TempDir(), "nope.pem"))
	assert.Error(t, err)
}
