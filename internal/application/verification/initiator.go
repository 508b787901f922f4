package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-eid-verify/internal/config"
	"github.com/go-eid-verify/internal/domain"
	"github.com/go-eid-verify/internal/pkg/token"
	"golang.org/x/oauth2"
)

// BeginRequest starts a verification attempt for an authenticated account.
type BeginRequest struct {
	AccountID string
	// ReturnURL is where the user lands after the callback; only local paths are kept.
	ReturnURL string
}

// RedirectInstruction tells the transport where to send the user agent.
type RedirectInstruction struct {
	URL string
}

// Initiator begins verification attempts: it mints the per-attempt secrets,
// stores them in the SessionVault and points the user agent at the provider.
type Initiator struct {
	provider  config.ProviderConfig
	oauth     *oauth2.Config
	ttl       time.Duration
	redirects *RedirectBuilder
	newSecret func() (string, error)
}

// NewInitiator builds an Initiator. ttl is the absolute lifetime of the attempt cookies.
func NewInitiator(provider config.ProviderConfig, ttl time.Duration, redirects *RedirectBuilder) *Initiator {
	return &Initiator{
		provider:  provider,
		oauth:     provider.OAuth2(),
		ttl:       ttl,
		redirects: redirects,
		newSecret: token.NewRandom,
	}
}

// Begin stores a fresh attempt in vault and returns the provider authorization
// redirect. Nothing is returned unless every attempt value was stored.
func (i *Initiator) Begin(_ context.Context, vault SessionVault, req BeginRequest) (*RedirectInstruction, error) {
	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		return nil, fmt.Errorf("account id required: %w", domain.ErrBadRequest)
	}

	state, err := i.newSecret()
	if err != nil {
		return nil, err
	}
	nonce, err := i.newSecret()
	if err != nil {
		return nil, err
	}
	verifier, err := i.newSecret()
	if err != nil {
		return nil, err
	}

	encodedState, err := EncodeState(domain.StatePayload{
		State:     state,
		UserID:    accountID,
		ReturnURL: i.redirects.ReturnURL(req.ReturnURL),
	})
	if err != nil {
		return nil, err
	}

	attempt := domain.EphemeralAttempt{
		State:               state,
		Nonce:               nonce,
		CodeVerifier:        verifier,
		InitiatingAccountID: accountID,
	}
	if err := SaveAttempt(vault, attempt, i.ttl); err != nil {
		return nil, fmt.Errorf("store verification attempt: %w", err)
	}

	return &RedirectInstruction{URL: i.oauth.AuthCodeURL(encodedState, i.authParams(nonce, verifier)...)}, nil
}

func (i *Initiator) authParams(nonce, verifier string) []oauth2.AuthCodeOption {
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	if i.provider.ServiceCode != "" {
		opts = append(opts, oauth2.SetAuthURLParam("service", i.provider.ServiceCode))
	}
	if i.provider.ACRValues != "" {
		opts = append(opts, oauth2.SetAuthURLParam("acr_values", i.provider.ACRValues))
	}
	if i.provider.ClaimsRequest != "" {
		opts = append(opts, oauth2.SetAuthURLParam("claims", i.provider.ClaimsRequest))
	}
	return opts
}
