package itsme

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-eid-verify/internal/application/verification"
	"github.com/go-eid-verify/internal/config"
	"github.com/go-eid-verify/internal/domain"
	"github.com/go-eid-verify/internal/pkg/validate"
	"golang.org/x/oauth2"
)

// Client implements verification.ClaimsExchangeClient against an OIDC eID
// provider: authorization code exchange with PKCE, ID token verification
// and an optional userinfo round trip.
type Client struct {
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	provider   *oidc.Provider
	userInfo   bool
	assertion  *AssertionSigner
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for every provider call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithVerifier replaces the JWKS backed ID token verifier.
func WithVerifier(v *oidc.IDTokenVerifier) Option {
	return func(c *Client) { c.verifier = v }
}

// WithAssertionSigner authenticates to the token endpoint with private_key_jwt.
func WithAssertionSigner(s *AssertionSigner) Option {
	return func(c *Client) { c.assertion = s }
}

// New builds a Client from static provider metadata. Discovery is not used:
// every endpoint comes from cfg.
func New(cfg config.ProviderConfig, opts ...Option) (*Client, error) {
	c := &Client{
		oauth:      cfg.OAuth2(),
		userInfo:   cfg.UserInfoURL != "",
		httpClient: &http.Client{Timeout: cfg.ExchangeTimeout},
	}
	for _, o := range opts {
		o(c)
	}

	if c.assertion == nil && cfg.PrivateKeyPath != "" {
		s, err := LoadAssertionSigner(cfg.PrivateKeyPath, cfg.KeyID, cfg.ClientID, cfg.TokenURL)
		if err != nil {
			return nil, err
		}
		c.assertion = s
	}

	// The key set fetches lazily and keeps using this context, so it must
	// outlive any single request.
	keyCtx := oidc.ClientContext(context.Background(), c.httpClient)
	c.provider = (&oidc.ProviderConfig{
		IssuerURL:   cfg.Issuer,
		AuthURL:     cfg.AuthURL,
		TokenURL:    cfg.TokenURL,
		UserInfoURL: cfg.UserInfoURL,
		JWKSURL:     cfg.JWKSURL,
		Algorithms:  []string{oidc.RS256, oidc.PS256, oidc.ES256},
	}).NewProvider(keyCtx)
	if c.verifier == nil {
		c.verifier = c.provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	}
	return c, nil
}

// Exchange implements verification.ClaimsExchangeClient. It never panics and
// reports every failure as a reason string.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier, nonce string) verification.ExchangeResult {
	claims, err := c.exchange(ctx, code, codeVerifier, nonce)
	if err != nil {
		return verification.ExchangeFailed(fmt.Errorf("%w: %w", domain.ErrExchange, err).Error())
	}
	return verification.ExchangeResult{Success: true, Claims: claims}
}

func (c *Client) exchange(ctx context.Context, code, codeVerifier, nonce string) (*domain.VerificationClaims, error) {
	if code == "" || codeVerifier == "" || nonce == "" {
		return nil, errors.New("code, code verifier and nonce are required")
	}
	ctx = oidc.ClientContext(ctx, c.httpClient)

	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(codeVerifier)}
	if c.assertion != nil {
		assertion, err := c.assertion.Sign()
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			oauth2.SetAuthURLParam("client_assertion_type", clientAssertionType),
			oauth2.SetAuthURLParam("client_assertion", assertion),
		)
	}

	tok, err := c.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, fmt.Errorf("token exchange: %s: %s", re.ErrorCode, re.ErrorDescription)
		}
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(nonce)) != 1 {
		return nil, errors.New("id token nonce does not match session nonce")
	}

	var pc providerClaims
	if err := idToken.Claims(&pc); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}

	if c.userInfo {
		ui, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
		if err != nil {
			return nil, fmt.Errorf("userinfo: %w", err)
		}
		if ui.Subject != idToken.Subject {
			return nil, errors.New("userinfo subject does not match id token subject")
		}
		var extra providerClaims
		if err := ui.Claims(&extra); err != nil {
			return nil, fmt.Errorf("decode userinfo claims: %w", err)
		}
		pc.merge(extra)
	}

	claims := pc.toDomain(idToken.Subject)
	if err := validate.Struct(claims); err != nil {
		return nil, fmt.Errorf("claims: %w", err)
	}
	return claims, nil
}
