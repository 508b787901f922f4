package verification

import (
	"encoding/base64"
	"testing"

	"github.com/go-eid-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_RoundTrip(t *testing.T) {
	in := domain.StatePayload{State: "s1", UserID: "u1", ReturnURL: "/account?x=1&y=2"}

	enc, err := EncodeState(in)
	require.NoError(t, err)
	assert.NotContains(t, enc, "=")

	out, err := DecodeState(enc)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

func TestDecodeState_AcceptsBareJSON(t *testing.T) {
	out, err := DecodeState(`{"state":"s1","userId":"u1","returnUrl":"/x"}`)
	require.NoError(t, err)
	assert.Equal(t, "s1", out.State)
	assert.Equal(t, "u1", out.UserID)
	assert.Equal(t, "/x", out.ReturnURL)
}

func TestDecodeState_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"not base64":       "***",
		"base64 not json":  base64.RawURLEncoding.EncodeToString([]byte("hello")),
		"broken json":      `{"state":`,
		"missing state":    `{"userId":"u1"}`,
		"missing user":     base64.RawURLEncoding.EncodeToString([]byte(`{"state":"s1"}`)),
		"wrong field type": `{"state":1,"userId":"u1"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeState(raw)
			assert.ErrorIs(t, err, domain.ErrInvalidState)
		})
	}
}

func TestEncodeState_RequiresFields(t *testing.T) {
	_, err := EncodeState(domain.StatePayload{State: "s1"})
	assert.Error(t, err)
}
