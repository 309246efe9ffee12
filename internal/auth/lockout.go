package auth

import (
	"strings"
	"sync"
	"time"
)

const (
	MaxFailedLoginAttempts = 10
	AccountLockoutDuration = 15 * time.Minute
)

type attempts struct {
	failed      int
	lastFailed  time.Time
	lockedUntil time.Time
}

// Lockout counts failed credential sign-ins per employee number and locks
// the number out once MaxFailedLoginAttempts is reached.
type Lockout struct {
	mu    sync.Mutex
	byKey map[string]*attempts
	Max   int
	For   time.Duration
	now   func() time.Time
}

func NewLockout() *Lockout {
	return &Lockout{
		byKey: make(map[string]*attempts),
		Max:   MaxFailedLoginAttempts,
		For:   AccountLockoutDuration,
		now:   time.Now,
	}
}

func lockKey(empNo string) string { return strings.ToLower(strings.TrimSpace(empNo)) }

// Fail records a failed attempt and reports whether the account is now locked.
func (l *Lockout) Fail(empNo string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := lockKey(empNo)
	a := l.byKey[k]
	if a == nil {
		a = &attempts{}
		l.byKey[k] = a
	}
	a.failed++
	a.lastFailed = l.now()
	if a.failed >= l.Max {
		a.lockedUntil = l.now().Add(l.For)
		return true
	}
	return false
}

// Reset clears the counter after a successful sign-in.
func (l *Lockout) Reset(empNo string) {
	l.mu.Lock()
	delete(l.byKey, lockKey(empNo))
	l.mu.Unlock()
}

// Locked reports whether empNo is locked. An expired lock is cleared.
func (l *Lockout) Locked(empNo string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := lockKey(empNo)
	a := l.byKey[k]
	if a == nil || a.lockedUntil.IsZero() {
		return false, time.Time{}
	}
	if l.now().Before(a.lockedUntil) {
		return true, a.lockedUntil
	}
	delete(l.byKey, k)
	return false, time.Time{}
}

// Sweep drops counters whose last failure is older than For and locks that
// have run out. It returns how many entries were removed.
func (l *Lockout) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, a := range l.byKey {
		if now.Before(a.lockedUntil) || now.Sub(a.lastFailed) <= l.For {
			continue
		}
		delete(l.byKey, k)
		n++
	}
	return n
}

func (l *Lockout) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
