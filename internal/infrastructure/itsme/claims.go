package itsme

import (
	"strings"

	"github.com/go-eid-verify/internal/domain"
)

// providerClaims is the union of the ID token and userinfo claim sets. Claims in
// the provider's own namespace are accepted next to the standard OIDC names.
type providerClaims struct {
	GivenName        string `json:"given_name"`
	FamilyName       string `json:"family_name"`
	Name             string `json:"name"`
	Birthdate        string `json:"birthdate"`
	Gender           string `json:"gender"`
	Nationality      string `json:"nationality"`
	NSNationality    string `json:"http://itsme.services/v2/claim/nationality"`
	NationalIDNumber string `json:"national_id_number"`
	NSNationalNumber string `json:"http://itsme.services/v2/claim/BENationalNumber"`
	Email            string `json:"email"`
	PhoneNumber      string `json:"phone_number"`
}

// merge overlays the non-empty values of o.
func (p *providerClaims) merge(o providerClaims) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&p.GivenName, o.GivenName)
	set(&p.FamilyName, o.FamilyName)
	set(&p.Name, o.Name)
	set(&p.Birthdate, o.Birthdate)
	set(&p.Gender, o.Gender)
	set(&p.Nationality, o.Nationality)
	set(&p.NSNationality, o.NSNationality)
	set(&p.NationalIDNumber, o.NationalIDNumber)
	set(&p.NSNationalNumber, o.NSNationalNumber)
	set(&p.Email, o.Email)
	set(&p.PhoneNumber, o.PhoneNumber)
}

func (p providerClaims) toDomain(subject string) *domain.VerificationClaims {
	display := strings.TrimSpace(p.Name)
	if display == "" {
		display = strings.TrimSpace(p.GivenName + " " + p.FamilyName)
	}
	return &domain.VerificationClaims{
		Subject:          subject,
		GivenName:        strings.TrimSpace(p.GivenName),
		FamilyName:       strings.TrimSpace(p.FamilyName),
		DisplayName:      display,
		Birthdate:        strings.TrimSpace(p.Birthdate),
		Nationality:      strings.TrimSpace(firstNonEmpty(p.Nationality, p.NSNationality)),
		Gender:           strings.TrimSpace(p.Gender),
		NationalIDNumber: strings.TrimSpace(firstNonEmpty(p.NationalIDNumber, p.NSNationalNumber)),
		Email:            p.Email,
		Phone:            p.PhoneNumber,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
