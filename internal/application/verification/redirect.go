package verification

import (
	"net/url"
	"strings"

	"github.com/go-eid-verify/internal/domain"
)

const (
	// VerifiedParam marks a successful verification on the final redirect.
	VerifiedParam = "itsme_verified"
	// ErrorParam carries the callback error code on the final redirect.
	ErrorParam = "error"
)

// RedirectBuilder produces the user-facing redirect at the end of a callback.
type RedirectBuilder struct {
	defaultPath string
}

// NewRedirectBuilder returns a builder falling back to defaultPath when no
// acceptable return URL is known.
func NewRedirectBuilder(defaultPath string) *RedirectBuilder {
	if !isLocalPath(defaultPath) {
		defaultPath = "/settings/verification"
	}
	return &RedirectBuilder{defaultPath: defaultPath}
}

// DefaultReturnURL is the destination used before a return URL has been parsed.
func (b *RedirectBuilder) DefaultReturnURL() string { return b.defaultPath }

// ReturnURL accepts a requested destination only when it is a same-origin path.
func (b *RedirectBuilder) ReturnURL(requested string) string {
	requested = strings.TrimSpace(requested)
	if isLocalPath(requested) {
		return requested
	}
	return b.defaultPath
}

// Success appends the verified marker to returnURL.
func (b *RedirectBuilder) Success(returnURL string) string {
	return b.withMarker(returnURL, VerifiedParam, "true")
}

// Error appends the error code to returnURL.
func (b *RedirectBuilder) Error(returnURL string, code domain.CallbackErrorCode) string {
	return b.withMarker(returnURL, ErrorParam, string(code))
}

func (b *RedirectBuilder) withMarker(returnURL, key, value string) string {
	u, err := url.Parse(b.ReturnURL(returnURL))
	if err != nil {
		u = &url.URL{Path: b.defaultPath}
	}
	q := u.Query()
	q.Del(VerifiedParam)
	q.Del(ErrorParam)
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// isLocalPath rejects absolute URLs and scheme-relative or backslash tricks
// that browsers resolve to another origin.
func isLocalPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") || strings.ContainsAny(p, "\r\n") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
