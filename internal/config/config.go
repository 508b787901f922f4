package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// AuditBucketName enables the S3 audit archive when set.
	AuditBucketName string
	SNSRegion       string
	// AlertTopicARN receives operator alerts (verification proven but not recorded).
	AlertTopicARN string
	// AuditTopicARN receives a copy of every verification audit event.
	AuditTopicARN string

	JWTPublicKeyPath string

	Provider     ProviderConfig
	Cookies      CookieConfig
	Verification VerificationConfig

	RateLimitPerSecond float64
	RateLimitBurst     int
	AllowedOrigins     []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users                 string
	IdentityVerifications string
	AuditEvents           string
}

// ProviderConfig describes the eID provider client registration. It is passed by
// value to every component that talks to the provider and never mutated.
type ProviderConfig struct {
	Name           string   `validate:"required"`
	ClientID       string   `validate:"required"`
	ClientSecret   string   // used only when PrivateKeyPath is empty
	PrivateKeyPath string   // private_key_jwt client authentication
	KeyID          string   // kid header for the client assertion
	Issuer         string   `validate:"required,url"`
	AuthURL        string   `validate:"required,url"`
	TokenURL       string   `validate:"required,url"`
	UserInfoURL    string   `validate:"omitempty,url"`
	JWKSURL        string   `validate:"required,url"`
	RedirectURI    string   `validate:"required,url"`
	Scopes         []string `validate:"required,min=1"`
	ServiceCode    string   // provider-specific "service" authorization parameter
	ACRValues      string
	// ClaimsRequest is the OIDC "claims" authorization parameter (JSON) asking for
	// the identity attributes returned from the userinfo endpoint.
	ClaimsRequest string
	// ExchangeTimeout bounds the code exchange, ID-token verification and userinfo round trips.
	ExchangeTimeout time.Duration `validate:"gt=0"`
}

// CookieConfig controls the ephemeral attempt cookies.
type CookieConfig struct {
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// VerificationConfig holds settings for recording verification outcomes.
type VerificationConfig struct {
	DefaultReturnPath string `validate:"required,startswith=/"`
	// NationalIDPepper keys the one-way hash of national id numbers.
	NationalIDPepper string        `validate:"required,min=16"`
	AuditTimeout     time.Duration `validate:"gt=0"`
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:                 getEnv("DYNAMO_TABLE_USERS", "users"),
			IdentityVerifications: getEnv("DYNAMO_TABLE_IDENTITY_VERIFICATIONS", "identity_verifications"),
			AuditEvents:           getEnv("DYNAMO_TABLE_AUDIT_EVENTS", "verification_audit_events"),
		},
		AuditBucketName:  getEnv("AUDIT_BUCKET_NAME", ""),
		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),
		AlertTopicARN:    getEnv("SNS_ALERT_TOPIC_ARN", ""),
		AuditTopicARN:    getEnv("SNS_AUDIT_TOPIC_ARN", ""),
		JWTPublicKeyPath: getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		Provider: ProviderConfig{
			Name:            getEnv("EID_PROVIDER_NAME", "itsme"),
			ClientID:        getEnv("EID_CLIENT_ID", ""),
			ClientSecret:    getEnv("EID_CLIENT_SECRET", ""),
			PrivateKeyPath:  getEnv("EID_PRIVATE_KEY_PATH", ""),
			KeyID:           getEnv("EID_KEY_ID", ""),
			Issuer:          getEnv("EID_ISSUER", "https://idp.prd.itsme.services/v2"),
			AuthURL:         getEnv("EID_AUTH_URL", "https://idp.prd.itsme.services/v2/authorization"),
			TokenURL:        getEnv("EID_TOKEN_URL", "https://idp.prd.itsme.services/v2/token"),
			UserInfoURL:     getEnv("EID_USERINFO_URL", "https://idp.prd.itsme.services/v2/userinfo"),
			JWKSURL:         getEnv("EID_JWKS_URL", "https://idp.prd.itsme.services/v2/jwkSet"),
			RedirectURI:     getEnv("EID_REDIRECT_URI", "http://localhost:3000/v1/identity-verification/callback"),
			Scopes:          splitCSV(getEnv("EID_SCOPES", "openid,profile,eid")),
			ServiceCode:     getEnv("EID_SERVICE_CODE", ""),
			ACRValues:       getEnv("EID_ACR_VALUES", "http://itsme.services/v2/claim/acr_basic"),
			ClaimsRequest:   getEnv("EID_CLAIMS_REQUEST", defaultClaimsRequest),
			ExchangeTimeout: getEnvDuration("EID_EXCHANGE_TIMEOUT", 15*time.Second),
		},
		Cookies: CookieConfig{
			Domain:   getEnv("COOKIE_DOMAIN", ""),
			Secure:   getEnvBool("COOKIE_SECURE", true),
			SameSite: parseSameSite(getEnv("COOKIE_SAMESITE", "lax")),
			TTL:      getEnvDuration("VERIFICATION_ATTEMPT_TTL", 10*time.Minute),
		},
		Verification: VerificationConfig{
			DefaultReturnPath: getEnv("VERIFICATION_RETURN_PATH", "/settings/verification"),
			NationalIDPepper:  getEnv("NATIONAL_ID_PEPPER", ""),
			AuditTimeout:      getEnvDuration("AUDIT_TIMEOUT", 5*time.Second),
		},
		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		AllowedOrigins:     splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
	}
}

const defaultClaimsRequest = `{"userinfo":{"given_name":null,"family_name":null,"name":null,"birthdate":null,"gender":null,` +
	`"http://itsme.services/v2/claim/nationality":null,"http://itsme.services/v2/claim/BENationalNumber":null}}`

var validate = validator.New()

// OAuth2 returns the OAuth2 client configuration for the provider. With
// private_key_jwt the client authenticates through an assertion sent in the form
// body, so credentials are never sent as basic auth.
func (p ProviderConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: p.RedirectURI,
		Scopes:      append([]string(nil), p.Scopes...),
	}
}

// Validate checks the settings the verification flow cannot run without.
func (c *Config) Validate() error {
	if err := validate.Struct(c.Provider); err != nil {
		return fmt.Errorf("provider config: %w", err)
	}
	if c.Provider.PrivateKeyPath == "" && c.Provider.ClientSecret == "" {
		return fmt.Errorf("provider config: EID_PRIVATE_KEY_PATH or EID_CLIENT_SECRET is required")
	}
	if err := validate.Struct(c.Verification); err != nil {
		return fmt.Errorf("verification config: %w", err)
	}
	if c.Cookies.TTL <= 0 {
		return fmt.Errorf("cookie config: VERIFICATION_ATTEMPT_TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseSameSite maps a config string onto http.SameSite. Strict is accepted but
// drops the cookies on the cross-site redirect back from the provider.
func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
