package itsme

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-eid-verify/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "client-1"
	testNonce    = "nonce-123"
	testVerifier = "verifier-abcdefghijklmnopqrstuvwxyz-0123456789"
)

type fakeProvider struct {
	srv        *httptest.Server
	signingKey *rsa.PrivateKey
	clientKey  *rsa.PrivateKey

	idClaims     jwt.MapClaims
	userInfo     map[string]any
	tokenStatus  int
	tokenBody    map[string]any
	omitIDToken  bool
	lastForm     map[string]string
	userInfoHits int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	signingKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	clientKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fp := &fakeProvider{signingKey: signingKey, clientKey: clientKey, tokenStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", fp.token)
	mux.HandleFunc("/userinfo", fp.userinfo)
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)

	fp.idClaims = jwt.MapClaims{
		"iss":        fp.srv.URL,
		"aud":        testClientID,
		"sub":        "abc123",
		"nonce":      testNonce,
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(5 * time.Minute).Unix(),
		"given_name": "Jane",
	}
	fp.userInfo = map[string]any{
		"sub":         "abc123",
		"family_name": "Peeters",
		"birthdate":   "1990-01-01",
		"email":       "jane@provider.example",
		"http://itsme.services/v2/claim/nationality":      "BE",
		"http://itsme.services/v2/claim/BENationalNumber": "90010112345",
	}
	return fp
}

func (fp *fakeProvider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fp.lastForm = map[string]string{}
	for k := range r.PostForm {
		fp.lastForm[k] = r.PostForm.Get(k)
	}
	w.Header().Set("Content-Type", "application/json")
	if fp.tokenStatus != http.StatusOK {
		w.WriteHeader(fp.tokenStatus)
		_ = json.NewEncoder(w).Encode(fp.tokenBody)
		return
	}
	body := map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 300}
	if !fp.omitIDToken {
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, fp.idClaims).SignedString(fp.signingKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body["id_token"] = idToken
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (fp *fakeProvider) userinfo(w http.ResponseWriter, r *http.Request) {
	fp.userInfoHits++
	if r.Header.Get("Authorization") != "Bearer at-1" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(fp.userInfo)
}

func (fp *fakeProvider) config() config.ProviderConfig {
	return config.ProviderConfig{
		Name:            "itsme",
		ClientID:        testClientID,
		Issuer:          fp.srv.URL,
		AuthURL:         fp.srv.URL + "/authorize",
		TokenURL:        fp.srv.URL + "/token",
		UserInfoURL:     fp.srv.URL + "/userinfo",
		JWKSURL:         fp.srv.URL + "/jwks",
		RedirectURI:     "https://app.example/v1/identity-verification/callback",
		Scopes:          []string{"openid", "profile"},
		ExchangeTimeout: 5 * time.Second,
	}
}

func (fp *fakeProvider) client(t *testing.T, cfg config.ProviderConfig, opts ...Option) *Client {
	t.Helper()
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&fp.signingKey.PublicKey}}
	verifier := oidc.NewVerifier(cfg.Issuer, keys, &oidc.Config{ClientID: cfg.ClientID})
	c, err := New(cfg, append([]Option{WithVerifier(verifier), WithHTTPClient(fp.srv.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestExchange_MergesIDTokenAndUserInfo(t *testing.T) {
	fp := newFakeProvider(t)
	c := fp.client(t, fp.config())

	res := c.Exchange(context.Background(), "code-1", testVerifier, testNonce)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "abc123", res.Claims.Subject)
	assert.Equal(t, "Jane", res.Claims.GivenName)
	assert.Equal(t, "Peeters", res.Claims.FamilyName)
	assert.Equal(t, "Jane Peeters", res.Claims.DisplayName)
	assert.Equal(t, "1990-01-01", res.Claims.Birthdate)
	assert.Equal(t, "BE", res.Claims.Nationality)
	assert.Equal(t, "90010112345", res.Claims.NationalIDNumber)

	assert.Equal(t, "authorization_code", fp.lastForm["grant_type"])
	assert.Equal(t, "code-1", fp.lastForm["code"])
	assert.Equal(t, testVerifier, fp.lastForm["code_verifier"])
	assert.Equal(t, testClientID, fp.lastForm["client_id"])
	assert.Equal(t, 1, fp.userInfoHits)
}

func TestExchange_SkipsUserInfoWhenNotConfigured(t *testing.T) {
	fp := newFakeProvider(t)
	cfg := fp.config()
	cfg.UserInfoURL = ""
	c := fp.client(t, cfg)

	res := c.Exchange(context.Background(), "code-1", testVerifier, testNonce)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Jane", res.Claims.DisplayName)
	assert.Empty(t, res.Claims.NationalIDNumber)
	assert.Zero(t, fp.userInfoHits)
}

func TestExchange_SendsClientAssertion(t *testing.T) {
	fp := newFakeProvider(t)
	cfg := fp.config()
	signer := NewAssertionSigner(fp.clientKey, "kid-1", testClientID, cfg.TokenURL)
	c := fp.client(t, cfg, WithAssertionSigner(signer))

	res := c.Exchange(context.Background(), "code-1", testVerifier, testNonce)
	require.True(t, res.Success, res.Error)

	assert.Equal(t, clientAssertionType, fp.lastForm["client_assertion_type"])
	assert.NotContains(t, fp.lastForm, "client_secret")
	parsed, err := jwt.ParseWithClaims(fp.lastForm["client_assertion"], &jwt.RegisteredClaims{},
		func(*jwt.Token) (interface{}, error) { return &fp.clientKey.PublicKey, nil },
		jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience(cfg.TokenURL), jwt.WithIssuer(testClientID))
	require.NoError(t, err)
	rc := parsed.Claims.(*jwt.RegisteredClaims)
	assert.Equal(t, testClientID, rc.Subject)
	assert.NotEmpty(t, rc.ID)
	assert.Equal(t, "kid-1", parsed.Header["kid"])
}

func TestExchange_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(fp *fakeProvider)
		nonce   string
		wantErr string
	}{
		{
			name:    "nonce mismatch",
			nonce:   "other-nonce",
			wantErr: "nonce",
		},
		{
			name:    "wrong audience",
			mutate:  func(fp *fakeProvider) { fp.idClaims["aud"] = "someone-else" },
			wantErr: "verify id token",
		},
		{
			name:    "wrong issuer",
			mutate:  func(fp *fakeProvider) { fp.idClaims["iss"] = "https://evil.example" },
			wantErr: "verify id token",
		},
		{
			name:    "expired id token",
			mutate:  func(fp *fakeProvider) { fp.idClaims["exp"] = time.Now().Add(-time.Hour).Unix() },
			wantErr: "verify id token",
		},
		{
			name:    "missing id token",
			mutate:  func(fp *fakeProvider) { fp.omitIDToken = true },
			wantErr: "no id_token",
		},
		{
			name: "code already used",
			mutate: func(fp *fakeProvider) {
				fp.tokenStatus = http.StatusBadRequest
				fp.tokenBody = map[string]any{"error": "invalid_grant", "error_description": "code expired"}
			},
			wantErr: "invalid_grant",
		},
		{
			name:    "userinfo subject differs",
			mutate:  func(fp *fakeProvider) { fp.userInfo["sub"] = "xyz" },
			wantErr: "subject",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fp := newFakeProvider(t)
			if tc.mutate != nil {
				tc.mutate(fp)
			}
			nonce := testNonce
			if tc.nonce != "" {
				nonce = tc.nonce
			}
			c := fp.client(t, fp.config())

			res := c.Exchange(context.Background(), "code-1", testVerifier, nonce)

			assert.False(t, res.Success)
			assert.Nil(t, res.Claims)
			assert.Contains(t, res.Error, tc.wantErr)
		})
	}
}

func TestExchange_RejectsForeignSignature(t *testing.T) {
	fp := newFakeProvider(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	fp.signingKey, other = other, fp.signingKey
	// the verifier trusts the original key, the provider now signs with another
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&other.PublicKey}}
	cfg := fp.config()
	c, err := New(cfg, WithVerifier(oidc.NewVerifier(cfg.Issuer, keys, &oidc.Config{ClientID: testClientID})), WithHTTPClient(fp.srv.Client()))
	require.NoError(t, err)

	res := c.Exchange(context.Background(), "code-1", testVerifier, testNonce)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "verify id token")
}

func TestExchange_RequiresInputs(t *testing.T) {
	fp := newFakeProvider(t)
	c := fp.client(t, fp.config())

	res := c.Exchange(context.Background(), "", testVerifier, testNonce)

	assert.False(t, res.Success)
	assert.True(t, strings.Contains(res.Error, "required"))
}
