package jwt

import (
	"net/http"
	"time"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	AccessCookiePath  = "/api/"
	RefreshCookiePath = "/api/refresh"
)

// Cookies builds the session cookies. Secure is only switched off for local
// development over plain http.
type Cookies struct {
	Secure bool
}

func (k Cookies) CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (k Cookies) DeleteCookie(name, path string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (k Cookies) Access(token string, exp time.Time) *http.Cookie {
	return k.CreateCookie(AccessCookie, token, AccessCookiePath, exp)
}

func (k Cookies) Refresh(token string, exp time.Time) *http.Cookie {
	return k.CreateCookie(RefreshCookie, token, RefreshCookiePath, exp)
}

func (k Cookies) Clear() []*http.Cookie {
	return []*http.Cookie{
		k.DeleteCookie(AccessCookie, AccessCookiePath),
		k.DeleteCookie(RefreshCookie, RefreshCookiePath),
	}
}
