package common

import (
	"errors"
	"net/http"
	"strconv"

	"plating/internal/auth"
	"plating/internal/response"
	"plating/internal/session"
)

// SignInRequest is the credential sign-in body.
type SignInRequest struct {
	EmpNo    string `json:"empNo"`
	Password string `json:"password"`
}

// SignInResponse is returned by both sign-in handlers. Pending is set while
// an RFID value is still shorter than a full badge.
type SignInResponse struct {
	Pending bool          `json:"pending"`
	Session *session.View `json:"session,omitempty"`
}

// throttle enforces the per-IP sign-in rate. It writes the 429 itself.
func (h *Handler) throttle(w http.ResponseWriter, r *http.Request) bool {
	if h.Limiter == nil {
		return true
	}
	ok, retry := h.Limiter.Allow(h.Limiter.ClientIP(r))
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	response.Err(w, "Too many login attempts. Try again later.", http.StatusTooManyRequests)
	return false
}

// signInFailed answers a refused sign-in with 401 and the dialog title.
func signInFailed(w http.ResponseWriter, err error) {
	var d *auth.Denied
	if errors.As(err, &d) {
		response.ErrBody(w, map[string]string{"error": d.Error(), "title": d.Title()}, http.StatusUnauthorized)
		return
	}
	response.FromError(w, err)
}

func (h *Handler) signedIn(w http.ResponseWriter, s *session.Session) {
	h.setCookie(w, s)
	v := s.View()
	response.JSON(w, SignInResponse{Session: &v})
}

// SignIn authenticates with employee number and password.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	if !h.throttle(w, r) {
		return
	}
	var req SignInRequest
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s, err := h.Auth.SignIn(r.Context(), req.EmpNo, req.Password)
	if err != nil {
		signInFailed(w, err)
		return
	}
	h.signedIn(w, s)
}

// SignInRFID submits a badge value as the scanner types it.
func (h *Handler) SignInRFID(w http.ResponseWriter, r *http.Request) {
	if !h.throttle(w, r) {
		return
	}
	var req struct {
		RFID string `json:"rfid"`
	}
	if err := response.DecodeBody(r, &req); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	s, err := h.Auth.SignInRFID(r.Context(), req.RFID)
	if err != nil {
		signInFailed(w, err)
		return
	}
	if s == nil {
		response.JSON(w, SignInResponse{Pending: true})
		return
	}
	h.signedIn(w, s)
}

// Logout ends the session and forgets its scan workflows and colors.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if s := session.FromContext(r.Context()); s != nil {
		token = s.Token
	} else if c, err := r.Cookie(session.CookieName); err == nil {
		token = c.Value
	}
	if token != "" {
		if err := h.Auth.Logout(r.Context(), token); err != nil {
			h.Log.Warn("logout", "err", err)
		}
		if h.Registry != nil {
			h.Registry.Drop(token)
		}
		if h.Palettes != nil {
			h.Palettes.Drop(token)
		}
	}
	clearCookie(w)
	response.JSON(w, map[string]string{"status": "ok"})
}

// Me returns the signed-in operator.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s == nil {
		response.ErrBody(w, map[string]string{"error": "Unauthorized", "code": "UNAUTHORIZED"}, http.StatusUnauthorized)
		return
	}
	response.JSON(w, s.View())
}
