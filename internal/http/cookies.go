package httpapi

import (
	"net/http"
	"time"

	"wisefido-casebook/internal/auth"
)

// CookieConfig 凭证 cookie 属性
type CookieConfig struct {
	Name   string
	Secure bool
}

func (c CookieConfig) set(w http.ResponseWriter, cred *auth.Credential) {
	maxAge := int(time.Until(cred.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    cred.Token,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  cred.ExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c CookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
