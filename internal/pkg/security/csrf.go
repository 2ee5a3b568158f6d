package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

const (
	// TokenFormField is the form and JSON body field carrying the token.
	TokenFormField = "_csrf"
	// TokenHeader is the header JSON and fetch-based callers use.
	TokenHeader = "X-CSRF-Token"

	tokenContext = "cvfox/csrf/v1:"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrMissingSecret  = errors.New("secret is required for token generation")
	// ErrForbiddenToken is what a rejected state-changing request reports.
	ErrForbiddenToken = errors.New("invalid or missing anti-forgery token")
)

// SessionLookup reports whether a session id is known and not expired.
type SessionLookup func(sessionID string) bool

// Guard issues and checks anti-forgery tokens bound to a session id.
type Guard struct {
	secret []byte
	active SessionLookup
}

func NewGuard(secret string, active SessionLookup) (*Guard, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Guard{secret: []byte(secret), active: active}, nil
}

// IssueToken returns the token of a session. The value is a keyed hash of
// the session id, so every form rendered during the session carries the
// same token.
func (g *Guard) IssueToken(sessionID string) (string, error) {
	if g == nil || !g.sessionActive(sessionID) {
		return "", ErrNoSession
	}
	return base64.RawURLEncoding.EncodeToString(g.sign(sessionID)), nil
}

// Validate recomputes the session's token and compares it with supplied in
// constant time. It returns false for any missing or malformed input.
func (g *Guard) Validate(sessionID, supplied string) bool {
	if g == nil {
		return false
	}
	supplied = strings.TrimSpace(supplied)
	if supplied == "" || !g.sessionActive(sessionID) {
		return false
	}
	got, err := base64.RawURLEncoding.DecodeString(supplied)
	if err != nil {
		return false
	}
	return hmac.Equal(got, g.sign(sessionID))
}

func (g *Guard) sessionActive(sessionID string) bool {
	if strings.TrimSpace(sessionID) == "" {
		return false
	}
	if g.active == nil {
		return true
	}
	return g.active(sessionID)
}

func (g *Guard) sign(sessionID string) []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(tokenContext))
	mac.Write([]byte(sessionID))
	return mac.Sum(nil)
}

// ExtractToken returns the first non-empty candidate. Callers pass the
// header, form field and JSON body field in whatever order fits them.
func ExtractToken(candidates ...string) string {
	for _, c := range candidates {
		if v := strings.TrimSpace(c); v != "" {
			return v
		}
	}
	return ""
}
