package verification

import (
	"context"

	"github.com/go-eid-verify/internal/domain"
)

// ExchangeResult is the outcome of a claims exchange. Error holds the reason
// when Success is false; it is logged, never shown to the user.
type ExchangeResult struct {
	Success bool
	Claims  *domain.VerificationClaims
	Error   string
}

// ClaimsExchangeClient trades an authorization code for verified identity claims.
// Implementations exchange the code with the PKCE verifier, verify the ID token
// signature, issuer, audience and nonce, and map the provider claims.
type ClaimsExchangeClient interface {
	Exchange(ctx context.Context, code, codeVerifier, nonce string) ExchangeResult
}

// ExchangeFailed builds a failed result.
func ExchangeFailed(reason string) ExchangeResult {
	return ExchangeResult{Error: reason}
}
