package auth

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/dmitrijs2005/cookieauth/internal/server/config"
)

// CookieTransport writes the token pair into httpOnly cookies and reads it
// back. Cookie lifetimes follow the token lifetimes.
type CookieTransport struct {
	AccessName  string
	RefreshName string
	Domain      string
	Path        string
	Secure      bool
	SameSite    http.SameSite
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// NewCookieTransport builds a CookieTransport from server config.
func NewCookieTransport(cfg *config.Config) *CookieTransport {
	path := cfg.CookiePath
	if path == "" {
		path = "/"
	}
	return &CookieTransport{
		AccessName:  common.AccessTokenCookieName,
		RefreshName: common.RefreshTokenCookieName,
		Domain:      cfg.CookieDomain,
		Path:        path,
		Secure:      cfg.CookieSecure,
		SameSite:    cfg.SameSite(),
		AccessTTL:   cfg.AccessTokenValidityDuration,
		RefreshTTL:  cfg.RefreshTokenValidityDuration,
	}
}

// AttachToResponse sets the access cookie and, when refresh is non-empty,
// the refresh cookie.
func (c *CookieTransport) AttachToResponse(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(c.AccessName, access, c.AccessTTL))
	if refresh != "" {
		http.SetCookie(w, c.cookie(c.RefreshName, refresh, c.RefreshTTL))
	}
}

// ClearFromResponse expires both cookies.
func (c *CookieTransport) ClearFromResponse(w http.ResponseWriter) {
	for _, name := range []string{c.AccessName, c.RefreshName} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}

// AccessToken returns the access cookie value, if present and non-empty.
func (c *CookieTransport) AccessToken(r *http.Request) (string, bool) {
	return readCookie(r, c.AccessName)
}

// RefreshToken returns the refresh cookie value, if present and non-empty.
func (c *CookieTransport) RefreshToken(r *http.Request) (string, bool) {
	return readCookie(r, c.RefreshName)
}

func (c *CookieTransport) cookie(name, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	}
	if ttl > 0 {
		ck.MaxAge = int(ttl.Seconds())
		ck.Expires = time.Now().Add(ttl)
	}
	return ck
}

func readCookie(r *http.Request, name string) (string, bool) {
	ck, err := r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}
