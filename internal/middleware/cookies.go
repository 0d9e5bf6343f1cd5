package middleware

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// Cookies writes the auth cookies. All of them are HttpOnly, SameSite=Lax
// and scoped to Path=/.
type Cookies struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SetTokens writes both auth cookies
func (c Cookies) SetTokens(w http.ResponseWriter, access, refresh string) {
	c.SetAccess(w, access)
	http.SetCookie(w, c.cookie(RefreshTokenCookie, refresh, c.RefreshTTL))
}

// SetAccess writes the access token cookie
func (c Cookies) SetAccess(w http.ResponseWriter, access string) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, access, c.AccessTTL))
}

// Clear expires both auth cookies
func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}

func (c Cookies) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
