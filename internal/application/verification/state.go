package verification

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-eid-verify/internal/domain"
	"github.com/go-eid-verify/internal/pkg/validate"
)

// EncodeState serialises the payload carried in the OAuth state parameter as
// base64url(JSON) so it survives the round trip through the provider untouched.
func EncodeState(p domain.StatePayload) (string, error) {
	if err := validate.Struct(p); err != nil {
		return "", fmt.Errorf("state payload: %w", err)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal state payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeState parses the state query parameter. Both the base64url form written
// by EncodeState and a bare JSON object are accepted. Every failure wraps
// domain.ErrInvalidState.
func DecodeState(raw string) (*domain.StatePayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty state: %w", domain.ErrInvalidState)
	}
	data := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, fmt.Errorf("decode state: %w", domain.ErrInvalidState)
		}
		data = decoded
	}
	var p domain.StatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", domain.ErrInvalidState)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("state payload %v: %w", err, domain.ErrInvalidState)
	}
	return &p, nil
}
