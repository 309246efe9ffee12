package common

import (
	"log/slog"
	"net/http"
	"time"

	"plating/internal/auth"
	"plating/internal/dashboard"
	"plating/internal/scan"
	"plating/internal/session"
)

// Handler holds dependencies for sign-in, session and dashboard handlers.
type Handler struct {
	Auth      *auth.Service
	Limiter   *auth.Limiter
	Registry  *scan.Registry
	Palettes  *dashboard.Palettes
	Dashboard *dashboard.Dashboard
	Log       *slog.Logger

	// SecureCookie sets the Secure flag on the session cookie.
	SecureCookie bool
	Now          func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) setCookie(w http.ResponseWriter, s *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    s.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
		Expires:  s.ExpiresAt,
	})
}

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
