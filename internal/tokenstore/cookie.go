package tokenstore

import (
	"net/http"
	"time"
)

// DefaultCookieName matches the cookie the dashboard frontend expects.
const DefaultCookieName = "firecloud_token"

// NewCookie builds the session cookie carrying the bearer token. Attributes
// are fixed: Secure, HttpOnly, SameSite=Strict.
func NewCookie(name, token string, ttl time.Duration) *http.Cookie {
	if name == "" {
		name = DefaultCookieName
	}
	c := &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
		c.Expires = time.Now().Add(ttl)
	}
	return c
}

// ExpiredCookie builds the removal counterpart of NewCookie, used on logout
// and on failed session restore.
func ExpiredCookie(name string) *http.Cookie {
	if name == "" {
		name = DefaultCookieName
	}
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// FromRequest reads the bearer token from the request cookie.
func FromRequest(r *http.Request, name string) (string, bool) {
	if name == "" {
		name = DefaultCookieName
	}
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
