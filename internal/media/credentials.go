package media

import (
	"net/http"
	"strings"
)

// AccessTokenCookie is the cookie the web frontend sets after login.
const AccessTokenCookie = "access_token"

const bearerPrefix = "Bearer "

// CredentialSource extracts a candidate bearer token from a request.
// Sources are pure: they never mutate the request, and in particular
// never promote a cookie into the Authorization header where a later
// stage could pick it up from stale state.
type CredentialSource interface {
	Token(r *http.Request) (string, bool)
}

// BearerHeaderSource reads the Authorization header. Only the literal
// "Bearer " scheme is accepted.
type BearerHeaderSource struct{}

func (BearerHeaderSource) Token(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(bearerPrefix):])
	return token, token != ""
}

// CookieSource reads the named cookie.
type CookieSource struct {
	Name string
}

func (s CookieSource) Token(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// DefaultCredentialSources returns the fixed precedence order: header
// first, cookie second. A present Authorization header always wins,
// even over a valid cookie.
func DefaultCredentialSources() []CredentialSource {
	return []CredentialSource{
		BearerHeaderSource{},
		CookieSource{Name: AccessTokenCookie},
	}
}

// ResolveCredential tries each source in order and returns the first
// token found.
func ResolveCredential(sources []CredentialSource, r *http.Request) (string, bool) {
	for _, s := range sources {
		if token, ok := s.Token(r); ok {
			return token, true
		}
	}
	return "", false
}
