package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/pribylovaa/go-accounts/internal/http/middleware"
	"github.com/pribylovaa/go-accounts/internal/models"
)

// RefreshCookie — имя cookie с refresh-токеном.
const RefreshCookie = "refreshToken"

func (h *Handlers) setSessionCookies(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, h.cookie(RefreshCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (h *Handlers) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessCookie, RefreshCookie} {
		c := h.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *Handlers) cookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.opts.Cookie.Path,
		Domain:   h.opts.Cookie.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   !h.opts.Cookie.Insecure,
		SameSite: sameSite(h.opts.Cookie.SameSite),
	}
	if c.Path == "" {
		c.Path = "/"
	}

	if value != "" {
		if maxAge := int(time.Until(expires).Seconds()); maxAge > 0 {
			c.MaxAge = maxAge
		}
	}

	return c
}

func sameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
