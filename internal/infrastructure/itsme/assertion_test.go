package itsme

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

func writeKey(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.pem")
	b := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestAssertionSigner_Claims(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	s, err := LoadAssertionSigner(writeKey(t, key), "kid-9", "client-1", "https://idp.example/token")
	require.NoError(t, err)
	fixed := time.Now().Truncate(time.Second)
	s.now = func() time.Time { return fixed }

	a, err := s.Sign()
	require.NoError(t, err)
	b, err := s.Sign()
	require.NoError(t, err)

	var rc jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(a, &rc, func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil })
	require.NoError(t, err)
	assert.Equal(t, "kid-9", tok.Header["kid"])
	assert.Equal(t, "client-1", rc.Issuer)
	assert.Equal(t, "client-1", rc.Subject)
	assert.Equal(t, jwt.ClaimStrings{"https://idp.example/token"}, rc.Audience)
	assert.Equal(t, fixed.Add(5*time.Minute).Unix(), rc.ExpiresAt.Unix())
	assert.NotEqual(t, a, b, "each assertion carries its own jti")
}

func TestLoadAssertionSigner_Errors(t *testing.T) {
	_, err := LoadAssertionSigner(filepath.Join(t.TempDir(), "missing.pem"), "", "c", "u")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a key"), 0o600))
	_, err = LoadAssertionSigner(bad, "", "c", "u")
	assert.Error(t, err)
}
