package domain

import "time"

// VerificationLevel is the assurance level recorded for a verified account.
type VerificationLevel string

const (
	VerificationLevelNone           VerificationLevel = "none"
	VerificationLevelIdentification VerificationLevel = "identification"
)

// KYCStatus is the know-your-customer status recorded for an account.
type KYCStatus string

const (
	KYCStatusNotStarted       KYCStatus = "not_started"
	KYCStatusProviderVerified KYCStatus = "provider_verified"
)

// VerificationClaims are the identity attributes asserted by the eID provider.
// They are never persisted verbatim.
type VerificationClaims struct {
	Subject          string `json:"sub" validate:"required"`
	GivenName        string `json:"given_name"`
	FamilyName       string `json:"family_name"`
	DisplayName      string `json:"name"`
	Birthdate        string `json:"birthdate"`
	Nationality      string `json:"nationality"`
	Gender           string `json:"gender"`
	NationalIDNumber string `json:"-"`
	// Email and Phone are carried for completeness only; the account's own
	// contact data is authoritative and these are never written anywhere.
	Email string `json:"-"`
	Phone string `json:"-"`
}

// ClaimsSnapshot is the non-sensitive subset of VerificationClaims stored on the record.
type ClaimsSnapshot struct {
	GivenName   string    `json:"given_name,omitempty" dynamodbav:"given_name,omitempty"`
	FamilyName  string    `json:"family_name,omitempty" dynamodbav:"family_name,omitempty"`
	DisplayName string    `json:"display_name,omitempty" dynamodbav:"display_name,omitempty"`
	Birthdate   string    `json:"birthdate,omitempty" dynamodbav:"birthdate,omitempty"`
	Nationality string    `json:"nationality,omitempty" dynamodbav:"nationality,omitempty"`
	Gender      string    `json:"gender,omitempty" dynamodbav:"gender,omitempty"`
	VerifiedAt  time.Time `json:"verified_at" dynamodbav:"verified_at"`
}

// VerificationRecord is the durable verification outcome for an account.
// PK: account_id. Written only through idempotent upserts, never deleted.
type VerificationRecord struct {
	AccountID          string            `json:"account_id" dynamodbav:"account_id"`
	Verified           bool              `json:"verified" dynamodbav:"verified"`
	VerifiedAt         *time.Time        `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	ProviderSubject    string            `json:"provider_subject,omitempty" dynamodbav:"provider_subject,omitempty"`
	ClaimsSnapshot     *ClaimsSnapshot   `json:"claims_snapshot,omitempty" dynamodbav:"claims_snapshot,omitempty"`
	VerificationLevel  VerificationLevel `json:"verification_level" dynamodbav:"verification_level"`
	NationalIDHash     *string           `json:"-" dynamodbav:"national_id_hash,omitempty"`
	IDDocumentVerified bool              `json:"id_document_verified" dynamodbav:"id_document_verified"`
	KYCStatus          KYCStatus         `json:"kyc_status" dynamodbav:"kyc_status"`
	CreatedAt          time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt          time.Time         `json:"updated" dynamodbav:"updated_at"`
}

// Status returns the audit status name of the record; a nil record is unverified.
func (r *VerificationRecord) Status() string {
	if r == nil || !r.Verified {
		return "unverified"
	}
	return "verified"
}
