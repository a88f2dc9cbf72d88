package handlers

import (
	"net/http"
	"time"

	"github.com/videotube/accounts/internal/services"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// CookieConfig controls the session cookies. Secure is off only for local development.
type CookieConfig struct {
	Secure bool
}

func (c CookieConfig) cookie(name, value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else if !expires.IsZero() {
		cookie.Expires = expires
	}
	return cookie
}

func (c CookieConfig) setSession(w http.ResponseWriter, session services.Session) {
	http.SetCookie(w, c.cookie(accessTokenCookie, session.AccessToken, session.AccessTokenExpiresAt))
	http.SetCookie(w, c.cookie(refreshTokenCookie, session.RefreshToken, session.RefreshTokenExpiresAt))
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(accessTokenCookie, "", time.Time{}))
	http.SetCookie(w, c.cookie(refreshTokenCookie, "", time.Time{}))
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
