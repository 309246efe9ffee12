// Package session replaces the browser's loose local-storage keys with one
// typed operator session, persisted server-side and injected per request.
package session

import (
	"context"
	"errors"
	"time"
)

// CookieName is the console session cookie.
const CookieName = "plating_session"

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("session not found")

// Session is the signed-in operator.
type Session struct {
	Token        string    `json:"token"`
	BackendToken string    `json:"backendToken"`
	UserID       int       `json:"userId"`
	Name         string    `json:"name"`
	EmpNo        string    `json:"empNo"`
	GroupID      int       `json:"groupId"`
	GroupName    string    `json:"groupName"`
	SectionID    int       `json:"sectionId"`
	SectionName  string    `json:"sectionName"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// View is the session as shown to the browser; it omits the backend token.
type View struct {
	Token       string    `json:"token"`
	UserID      int       `json:"userId"`
	Name        string    `json:"name"`
	EmpNo       string    `json:"empNo"`
	GroupID     int       `json:"groupId"`
	GroupName   string    `json:"groupName"`
	SectionID   int       `json:"sectionId"`
	SectionName string    `json:"sectionName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Session) View() View {
	return View{
		Token:       s.Token,
		UserID:      s.UserID,
		Name:        s.Name,
		EmpNo:       s.EmpNo,
		GroupID:     s.GroupID,
		GroupName:   s.GroupName,
		SectionID:   s.SectionID,
		SectionName: s.SectionName,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Store persists sessions by token.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	Close() error
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session, or nil outside authenticated routes.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
