// Package auth signs operators in by RFID badge or employee credentials and
// protects the sign-in surface with per-IP throttling and account lockout.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"plating/internal/backend"
	"plating/internal/metrics"
	"plating/internal/session"
	"plating/internal/validation"
)

// DefaultRFIDMinLength is the badge length at which a scan is submitted.
const DefaultRFIDMinLength = 10

var ErrLocked = errors.New("account locked")

// Denied is a sign-in the backend refused.
type Denied struct{ err error }

func (d *Denied) Title() string { return "ไม่สามารถเข้าสู่ระบบได้" }
func (d *Denied) Error() string { return "ไม่มีสิทธิ์ในการเข้าถึง" }
func (d *Denied) Unwrap() error { return d.err }

// Authenticator is the backend's sign-in API; *backend.Client implements it.
type Authenticator interface {
	SignIn(ctx context.Context, empNo, password string) (*backend.SignInResult, error)
	SignInRFID(ctx context.Context, rfid string) (*backend.SignInResult, error)
}

type Service struct {
	Backend       Authenticator
	Sessions      *session.Manager
	Lockout       *Lockout
	Metrics       *metrics.Metrics
	Log           *slog.Logger
	RFIDMinLength int
}

// RFIDReady reports whether a badge value is long enough to submit.
func (s *Service) RFIDReady(rfid string) bool {
	n := s.RFIDMinLength
	if n <= 0 {
		n = DefaultRFIDMinLength
	}
	return len(strings.TrimSpace(rfid)) >= n
}

// SignIn checks employee credentials with the backend and opens a session.
func (s *Service) SignIn(ctx context.Context, empNo, password string) (*session.Session, error) {
	empNo = strings.TrimSpace(empNo)
	if empNo == "" || password == "" {
		ve := &validation.ValidationErrors{}
		ve.Add("credentials", "โปรดกรอก username หรือ password ด้วย")
		return nil, ve
	}
	if s.Lockout != nil {
		if locked, _ := s.Lockout.Locked(empNo); locked {
			s.Metrics.Login("password", false)
			return nil, &Denied{err: ErrLocked}
		}
	}

	res, err := s.Backend.SignIn(ctx, empNo, password)
	if err != nil {
		s.Metrics.Login("password", false)
		if errors.Is(err, backend.ErrUnauthorized) {
			if s.Lockout != nil && s.Lockout.Fail(empNo) {
				s.Log.Warn("account locked after failed sign-ins", "empNo", empNo)
			}
			return nil, &Denied{err: err}
		}
		return nil, err
	}
	if s.Lockout != nil {
		s.Lockout.Reset(empNo)
	}
	return s.open(ctx, "password", res)
}

// SignInRFID submits a badge value. A value shorter than the badge length is
// still being typed: it returns a nil session and a nil error.
func (s *Service) SignInRFID(ctx context.Context, rfid string) (*session.Session, error) {
	rfid = strings.TrimSpace(rfid)
	if !s.RFIDReady(rfid) {
		return nil, nil
	}
	res, err := s.Backend.SignInRFID(ctx, rfid)
	if err != nil {
		s.Metrics.Login("rfid", false)
		if errors.Is(err, backend.ErrUnauthorized) {
			return nil, &Denied{err: err}
		}
		return nil, err
	}
	return s.open(ctx, "rfid", res)
}

func (s *Service) open(ctx context.Context, method string, res *backend.SignInResult) (*session.Session, error) {
	sess, err := s.Sessions.Login(ctx, res)
	if err != nil {
		s.Metrics.Login(method, false)
		return nil, err
	}
	s.Metrics.Login(method, true)
	s.Log.Info("operator signed in", "method", method, "empNo", sess.EmpNo, "userId", sess.UserID)
	return sess, nil
}

// Logout closes the session with token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.Sessions.Logout(ctx, token)
}
