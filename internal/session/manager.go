package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plating/internal/backend"

	"github.com/google/uuid"
)

// Manager owns the login/logout lifecycle on top of a Store.
type Manager struct {
	Store Store
	TTL   time.Duration
	Now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{Store: store, TTL: ttl, Now: time.Now}
}

// Login records a new session for the user the backend authenticated.
func (m *Manager) Login(ctx context.Context, res *backend.SignInResult) (*Session, error) {
	if res == nil {
		return nil, errors.New("session: nil sign-in result")
	}
	now := m.Now().UTC()
	s := &Session{
		Token:        uuid.NewString(),
		BackendToken: res.Token,
		UserID:       res.ID,
		Name:         res.Name,
		EmpNo:        res.EmpNo,
		GroupID:      res.GroupID,
		GroupName:    res.GroupName,
		SectionID:    res.SectionID,
		SectionName:  res.SectionName,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.TTL),
	}
	if err := m.Store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Lookup returns the live session for token. Expired sessions are removed.
func (m *Manager) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s, err := m.Store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.Now()) {
		_ = m.Store.Delete(ctx, token)
		return nil, ErrNotFound
	}
	return s, nil
}

// Logout removes the session; unknown tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if err := m.Store.Delete(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
