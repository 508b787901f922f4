package cookie

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-eid-verify/internal/application/verification"
	"github.com/go-eid-verify/internal/config"
)

// Names maps each vault key onto its cookie name.
var Names = map[verification.VaultKey]string{
	verification.KeyState:        "itsme_state",
	verification.KeyNonce:        "itsme_nonce",
	verification.KeyCodeVerifier: "itsme_code_verifier",
	verification.KeyAccountID:    "itsme_user_id",
}

// Factory binds the cookie settings; For returns a request scoped vault.
type Factory struct {
	cfg config.CookieConfig
}

func NewFactory(cfg config.CookieConfig) *Factory {
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Factory{cfg: cfg}
}

// For returns a vault reading cookies from r and writing Set-Cookie headers to w.
func (f *Factory) For(w http.ResponseWriter, r *http.Request) *Vault {
	return &Vault{w: w, r: r, cfg: f.cfg, pending: map[verification.VaultKey]*string{}}
}

// Vault is a verification.SessionVault backed by HttpOnly cookies. Values set
// or deleted during the request shadow the incoming cookies.
type Vault struct {
	w       http.ResponseWriter
	r       *http.Request
	cfg     config.CookieConfig
	pending map[verification.VaultKey]*string
}

func (v *Vault) Get(key verification.VaultKey) (string, bool) {
	if p, ok := v.pending[key]; ok {
		if p == nil {
			return "", false
		}
		return *p, true
	}
	name, ok := Names[key]
	if !ok {
		return "", false
	}
	c, err := v.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (v *Vault) Set(key verification.VaultKey, value string, ttl time.Duration) error {
	name, ok := Names[key]
	if !ok {
		return fmt.Errorf("unknown vault key %q", key)
	}
	if ttl <= 0 {
		ttl = v.cfg.TTL
	}
	c := v.cookie(name, value)
	c.MaxAge = int(ttl.Seconds())
	c.Expires = time.Now().Add(ttl).UTC()
	if err := c.Valid(); err != nil {
		return fmt.Errorf("cookie %s: %w", name, err)
	}
	http.SetCookie(v.w, c)
	v.pending[key] = &value
	return nil
}

// Delete expires the cookie with the same attributes it was set with.
func (v *Vault) Delete(key verification.VaultKey) {
	name, ok := Names[key]
	if !ok {
		return
	}
	c := v.cookie(name, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(v.w, c)
	v.pending[key] = nil
}

func (v *Vault) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   v.cfg.Domain,
		HttpOnly: true,
		Secure:   v.cfg.Secure,
		SameSite: v.cfg.SameSite,
	}
}
