package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-eid-verify/internal/application/verification"
	"github.com/go-eid-verify/internal/domain"
	"github.com/go-eid-verify/internal/transport/http/middleware"
)

// Initiator starts verification attempts.
type Initiator interface {
	Begin(ctx context.Context, vault verification.SessionVault, req verification.BeginRequest) (*verification.RedirectInstruction, error)
}

// CallbackProcessor handles the provider redirect.
type CallbackProcessor interface {
	Process(ctx context.Context, vault verification.SessionVault, params verification.CallbackParams, meta verification.RequestMetadata) verification.CallbackResult
}

// StatusReader returns an account's verification record.
type StatusReader interface {
	Current(ctx context.Context, accountID string) (*domain.VerificationRecord, error)
}

// VaultFunc returns the request scoped session vault.
type VaultFunc func(w http.ResponseWriter, r *http.Request) verification.SessionVault

// VerificationHandler serves the identity verification endpoints.
type VerificationHandler struct {
	initiator Initiator
	callback  CallbackProcessor
	status    StatusReader
	vault     VaultFunc
}

func NewVerificationHandler(initiator Initiator, callback CallbackProcessor, status StatusReader, vault VaultFunc) *VerificationHandler {
	return &VerificationHandler{initiator: initiator, callback: callback, status: status, vault: vault}
}

// Authorize starts an attempt for the authenticated caller and redirects to the
// provider. Clients sending Accept: application/json get the URL in the body.
func (h *VerificationHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	instr, err := h.initiator.Begin(r.Context(), h.vault(w, r), verification.BeginRequest{
		AccountID: accountID,
		ReturnURL: r.URL.Query().Get("return_url"),
	})
	if err != nil {
		slog.Error("start identity verification", "account_id", accountID,
			"request_id", chimiddleware.GetReqID(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, "could not start verification")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, RedirectEnvelope{RedirectURL: instr.URL})
		return
	}
	http.Redirect(w, r, instr.URL, http.StatusFound)
}

// Callback completes an attempt. It always answers with a redirect.
func (h *VerificationHandler) Callback(w http.ResponseWriter, r *http.Request) {
	res := h.callback.Process(r.Context(), h.vault(w, r), verification.ParseCallbackParams(r.URL.Query()),
		verification.RequestMetadata{
			ClientIP:  middleware.ClientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: chimiddleware.GetReqID(r.Context()),
		})
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// Status returns the caller's verification record.
func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.AccountIDFromContext(r.Context())
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rec, err := h.status.Current(r.Context(), accountID)
	if err != nil {
		slog.Error("read verification status", "account_id", accountID, "err", err)
		writeError(w, http.StatusInternalServerError, "could not read verification status")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, toStatusEnvelope(rec))
}

func wantsJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Accept"))
	return err == nil && mt == "application/json"
}
