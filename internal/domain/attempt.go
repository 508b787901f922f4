package domain

// EphemeralAttempt holds the per-attempt secrets that travel with the user agent
// between authorize and callback. It is never stored server-side.
type EphemeralAttempt struct {
	State               string
	Nonce               string
	CodeVerifier        string
	InitiatingAccountID string
}

// StatePayload is the structured value carried inside the OAuth state parameter.
type StatePayload struct {
	State     string `json:"state" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	ReturnURL string `json:"returnUrl,omitempty"`
}

// CallbackErrorCode is the error marker appended to the final callback redirect.
type CallbackErrorCode string

const (
	CodeMissingParams      CallbackErrorCode = "missing_params"
	CodeInvalidState       CallbackErrorCode = "invalid_state"
	CodeStateMismatch      CallbackErrorCode = "state_mismatch"
	CodeSessionExpired     CallbackErrorCode = "session_expired"
	CodeUserMismatch       CallbackErrorCode = "user_mismatch"
	CodeVerificationFailed CallbackErrorCode = "verification_failed"
	CodeUnexpectedError    CallbackErrorCode = "unexpected_error"
)

// ProviderErrorCode builds the error marker for a provider-reported failure.
func ProviderErrorCode(providerError string) CallbackErrorCode {
	return CallbackErrorCode("itsme_" + providerError)
}
