package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-eid-verify/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// RedirectEnvelope is returned to clients that ask for JSON instead of a 302.
type RedirectEnvelope struct {
	RedirectURL string `json:"redirect_url"`
}

// VerificationStatusEnvelope is the caller's verification state. The national
// id hash is never part of it.
type VerificationStatusEnvelope struct {
	Status             string                   `json:"status"`
	Verified           bool                     `json:"verified"`
	VerifiedAt         *time.Time               `json:"verified_at,omitempty"`
	VerificationLevel  domain.VerificationLevel `json:"verification_level"`
	KYCStatus          domain.KYCStatus         `json:"kyc_status"`
	IDDocumentVerified bool                     `json:"id_document_verified"`
	Claims             *domain.ClaimsSnapshot   `json:"claims,omitempty"`
}

func toStatusEnvelope(rec *domain.VerificationRecord) VerificationStatusEnvelope {
	return VerificationStatusEnvelope{
		Status:             rec.Status(),
		Verified:           rec.Verified,
		VerifiedAt:         rec.VerifiedAt,
		VerificationLevel:  rec.VerificationLevel,
		KYCStatus:          rec.KYCStatus,
		IDDocumentVerified: rec.IDDocumentVerified,
		Claims:             rec.ClaimsSnapshot,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
