package verification

import (
	"fmt"
	"time"

	"github.com/go-eid-verify/internal/domain"
)

// VaultKey names one of the ephemeral values kept for an in-flight attempt.
type VaultKey string

const (
	KeyState        VaultKey = "state"
	KeyNonce        VaultKey = "nonce"
	KeyCodeVerifier VaultKey = "code_verifier"
	KeyAccountID    VaultKey = "account_id"
)

// AttemptKeys lists every key written for an attempt, in write order.
var AttemptKeys = []VaultKey{KeyState, KeyNonce, KeyCodeVerifier, KeyAccountID}

// SessionVault stores the short-lived per-attempt secrets. Implementations are
// request scoped; the cookie-backed vault is the only one used in production.
type SessionVault interface {
	Get(key VaultKey) (string, bool)
	Set(key VaultKey, value string, ttl time.Duration) error
	Delete(key VaultKey)
}

// SaveAttempt writes every attempt value. On failure the values already written
// are removed again so no partial attempt is left behind.
func SaveAttempt(v SessionVault, a domain.EphemeralAttempt, ttl time.Duration) error {
	values := map[VaultKey]string{
		KeyState:        a.State,
		KeyNonce:        a.Nonce,
		KeyCodeVerifier: a.CodeVerifier,
		KeyAccountID:    a.InitiatingAccountID,
	}
	for _, k := range AttemptKeys {
		if err := v.Set(k, values[k], ttl); err != nil {
			ClearAttempt(v)
			return fmt.Errorf("store %s: %w", k, err)
		}
	}
	return nil
}

// LoadAttempt reads whatever attempt values are present; missing ones are empty.
func LoadAttempt(v SessionVault) domain.EphemeralAttempt {
	get := func(k VaultKey) string {
		s, _ := v.Get(k)
		return s
	}
	return domain.EphemeralAttempt{
		State:               get(KeyState),
		Nonce:               get(KeyNonce),
		CodeVerifier:        get(KeyCodeVerifier),
		InitiatingAccountID: get(KeyAccountID),
	}
}

// ClearAttempt deletes every attempt value.
func ClearAttempt(v SessionVault) {
	for _, k := range AttemptKeys {
		v.Delete(k)
	}
}
