package http

import (
	"context"
	"net/http"

	"github.com/go-eid-verify/internal/application/verification"
	"github.com/go-eid-verify/internal/domain"
	"github.com/go-eid-verify/internal/transport/http/middleware"
)

// Persister records verified identities and serves the current status.
type Persister interface {
	verification.Persister
	Current(ctx context.Context, accountID string) (*domain.VerificationRecord, error)
}

// VaultFactory builds the request scoped session vault.
type VaultFactory func(w http.ResponseWriter, r *http.Request) verification.SessionVault

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Exchange  verification.ClaimsExchangeClient
	Persister Persister
	// Alerter is optional; operator alerts are skipped without it.
	Alerter verification.Alerter
	// TokenVerifier is optional; authenticated routes reject every request without it.
	TokenVerifier middleware.TokenVerifier
	Vaults        VaultFactory
	// Ready backs the readiness health check.
	Ready func(ctx context.Context) error
}
