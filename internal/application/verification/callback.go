package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-eid-verify/internal/domain"
	"github.com/go-eid-verify/internal/pkg/validate"
)

const (
	defaultExchangeTimeout = 15 * time.Second
	maxProviderErrorLen    = 64
)

// CallbackParams are the query parameters of the provider redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallbackParams reads the callback parameters from a query string.
func ParseCallbackParams(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             strings.TrimSpace(q.Get("code")),
		State:            strings.TrimSpace(q.Get("state")),
		Error:            strings.TrimSpace(q.Get("error")),
		ErrorDescription: q.Get("error_description"),
	}
}

// RequestMetadata describes the HTTP request that delivered the callback.
type RequestMetadata struct {
	ClientIP  string
	UserAgent string
	RequestID string
}

// CallbackResult is the outcome of a processed callback. RedirectURL is always set.
type CallbackResult struct {
	RedirectURL string
	Code        domain.CallbackErrorCode
	Verified    bool
}

// Persister records a successful verification.
type Persister interface {
	Persist(ctx context.Context, accountID string, claims *domain.VerificationClaims, meta RequestMetadata) error
}

// Alerter notifies operators of failures that need a human.
type Alerter interface {
	Alert(ctx context.Context, subject, message string) error
}

// CallbackProcessor validates the provider redirect, exchanges the code for
// claims and records the verification. Every outcome is a redirect.
type CallbackProcessor struct {
	exchange  ClaimsExchangeClient
	persister Persister
	redirects *RedirectBuilder
	timeout   time.Duration
	alerter   Alerter
	logger    *slog.Logger
}

// CallbackOption customises a CallbackProcessor.
type CallbackOption func(*CallbackProcessor)

// WithLogger sets the logger; slog.Default is used otherwise.
func WithLogger(l *slog.Logger) CallbackOption {
	return func(p *CallbackProcessor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAlerter sets the operator alert channel for persistence failures.
func WithAlerter(a Alerter) CallbackOption {
	return func(p *CallbackProcessor) { p.alerter = a }
}

// WithExchangeTimeout bounds the claims exchange.
func WithExchangeTimeout(d time.Duration) CallbackOption {
	return func(p *CallbackProcessor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewCallbackProcessor(exchange ClaimsExchangeClient, persister Persister, redirects *RedirectBuilder, opts ...CallbackOption) *CallbackProcessor {
	p := &CallbackProcessor{
		exchange:  exchange,
		persister: persister,
		redirects: redirects,
		timeout:   defaultExchangeTimeout,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the callback. The attempt stored in vault is cleared exactly
// once before Process returns, whatever the outcome, panics included.
func (p *CallbackProcessor) Process(ctx context.Context, vault SessionVault, params CallbackParams, meta RequestMetadata) (res CallbackResult) {
	returnURL := p.redirects.DefaultReturnURL()
	log := p.logger.With("request_id", meta.RequestID, "client_ip", meta.ClientIP)

	defer func() {
		r := recover()
		p.clear(vault, log)
		if r != nil {
			log.Error("verification callback panicked", "panic", r)
			res = p.fail(returnURL, domain.CodeUnexpectedError)
		}
	}()

	if params.Error != "" {
		log.Warn("identity provider returned an error",
			"provider_error", params.Error, "error_description", params.ErrorDescription)
		return p.fail(returnURL, domain.ProviderErrorCode(sanitizeProviderError(params.Error)))
	}
	if params.Code == "" || params.State == "" {
		log.Warn("verification callback missing parameters",
			"has_code", params.Code != "", "has_state", params.State != "")
		return p.fail(returnURL, domain.CodeMissingParams)
	}

	attempt := LoadAttempt(vault)

	payload, err := DecodeState(params.State)
	if err != nil {
		log.Warn("verification callback state unreadable", "err", err)
		return p.fail(returnURL, domain.CodeInvalidState)
	}
	returnURL = p.redirects.ReturnURL(payload.ReturnURL)

	if attempt.State == "" || subtle.ConstantTimeCompare([]byte(attempt.State), []byte(payload.State)) != 1 {
		p.securityEvent(log, "state_mismatch", "verification state does not match session",
			"has_session_state", attempt.State != "", "state_user_id", payload.UserID)
		return p.fail(returnURL, domain.CodeStateMismatch)
	}

	if attempt.Nonce == "" || attempt.CodeVerifier == "" || attempt.InitiatingAccountID == "" {
		log.Warn("verification session incomplete",
			"has_nonce", attempt.Nonce != "",
			"has_code_verifier", attempt.CodeVerifier != "",
			"has_account_id", attempt.InitiatingAccountID != "")
		return p.fail(returnURL, domain.CodeSessionExpired)
	}

	if payload.UserID != attempt.InitiatingAccountID {
		p.securityEvent(log, "user_mismatch", "verification state user does not match session user",
			"account_id", attempt.InitiatingAccountID, "state_user_id", payload.UserID)
		return p.fail(returnURL, domain.CodeUserMismatch)
	}

	result := p.exchangeClaims(ctx, params.Code, attempt.CodeVerifier, attempt.Nonce)
	if !result.Success {
		log.Warn("identity claims exchange failed", "account_id", attempt.InitiatingAccountID, "reason", result.Error)
		return p.fail(returnURL, domain.CodeVerificationFailed)
	}

	if err := p.persister.Persist(ctx, attempt.InitiatingAccountID, result.Claims, meta); err != nil {
		log.Error("identity verified but not recorded",
			"alert", true, "account_id", attempt.InitiatingAccountID, "err", err)
		p.alert(ctx, log, attempt.InitiatingAccountID, meta, err)
		return p.fail(returnURL, domain.CodeUnexpectedError)
	}

	log.Info("identity verified", "account_id", attempt.InitiatingAccountID)
	return CallbackResult{RedirectURL: p.redirects.Success(returnURL), Verified: true}
}

// exchangeClaims runs the exchange bounded by the configured timeout. A
// collaborator that ignores ctx is abandoned once the deadline passes.
func (p *CallbackProcessor) exchangeClaims(ctx context.Context, code, verifier, nonce string) ExchangeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan ExchangeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- ExchangeFailed(fmt.Sprintf("exchange panicked: %v", r))
			}
		}()
		done <- p.exchange.Exchange(ctx, code, verifier, nonce)
	}()

	var res ExchangeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return ExchangeFailed("exchange aborted: " + ctx.Err().Error())
	}
	if !res.Success {
		if res.Error == "" {
			res.Error = "exchange failed without a reason"
		}
		return res
	}
	if res.Claims == nil {
		return ExchangeFailed("exchange succeeded without claims")
	}
	if err := validate.Struct(res.Claims); err != nil {
		return ExchangeFailed("claims rejected: " + err.Error())
	}
	return res
}

func (p *CallbackProcessor) fail(returnURL string, code domain.CallbackErrorCode) CallbackResult {
	return CallbackResult{RedirectURL: p.redirects.Error(returnURL, code), Code: code}
}

func (p *CallbackProcessor) clear(vault SessionVault, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("clearing verification session panicked", "panic", r)
		}
	}()
	ClearAttempt(vault)
}

func (p *CallbackProcessor) securityEvent(log *slog.Logger, event, msg string, args ...any) {
	log.Error(msg, append([]any{"security_event", true, "event", event}, args...)...)
}

func (p *CallbackProcessor) alert(ctx context.Context, log *slog.Logger, accountID string, meta RequestMetadata, cause error) {
	if p.alerter == nil {
		return
	}
	msg := fmt.Sprintf("account %s completed identity verification but the result was not recorded (request %s): %v",
		accountID, meta.RequestID, cause)
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.alerter.Alert(actx, "identity proven but not recorded", msg); err != nil {
		log.Error("operator alert failed", "account_id", accountID, "err", errors.Join(cause, err))
	}
}

// sanitizeProviderError keeps the provider error usable as a query value and
// log field. Anything outside [A-Za-z0-9_] is dropped.
func sanitizeProviderError(e string) string {
	var b strings.Builder
	for _, r := range e {
		if b.Len() >= maxProviderErrorLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown_error"
	}
	return b.String()
}
