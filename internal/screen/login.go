package screen

import (
	"context"
	"sync"

	"github.com/xenking/productos/internal/session"
)

// Authenticator performs a login and persists the resulting session.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
}

// Login is the login view model.
type Login struct {
	auth Authenticator

	mu         sync.Mutex
	submitting bool
	err        string
}

// NewLogin creates a Login screen.
func NewLogin(auth Authenticator) *Login {
	return &Login{auth: auth}
}

// Submit attempts a login. On failure the inline error is set and false is
// returned; navigation on success is done by the session.
func (l *Login) Submit(ctx context.Context, username, password string) bool {
	l.mu.Lock()
	if l.submitting {
		l.mu.Unlock()
		return false
	}
	l.submitting = true
	l.err = ""
	l.mu.Unlock()

	_, err := l.auth.Login(ctx, username, password)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitting = false
	if err != nil {
		l.err = Message(err, msgLoginFailed)
		return false
	}
	return true
}

// Error returns the inline error of the last attempt.
func (l *Login) Error() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Busy reports whether a login is in flight.
func (l *Login) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.submitting
}
