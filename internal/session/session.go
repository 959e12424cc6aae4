// Package session owns the bearer token: it performs login, persists the
// token in a key/value Store, exposes it to outgoing requests and sends the
// user back to the login view whenever the token is missing or rejected.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/api"
)

// TokenKey is the fixed storage key holding the bearer token.
const TokenKey = "token"

// Store is a persistent client-side key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Authenticator is the remote side of the session: credential exchange and a
// probe of a protected endpoint.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (*api.LoginResult, error)
	Probe(ctx context.Context, token string) error
}

// Navigator receives navigation signals. It replaces router redirects.
type Navigator interface {
	ToProducts()
	ToLogin()
}

// NopNavigator ignores navigation signals.
type NopNavigator struct{}

func (NopNavigator) ToProducts() {}
func (NopNavigator) ToLogin()    {}

// Session is an authenticated session.
type Session struct {
	Token string
}

// Manager coordinates the token lifecycle. It is safe for concurrent use as
// long as the Store is.
type Manager struct {
	store Store
	auth  Authenticator
	nav   Navigator
	lg    *zap.Logger

	mu    sync.Mutex
	onEnd []func()
}

// NewManager creates a Manager. A nil Navigator is replaced by NopNavigator.
func NewManager(store Store, auth Authenticator, nav Navigator, lg *zap.Logger) *Manager {
	if nav == nil {
		nav = NopNavigator{}
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Manager{
		store: store,
		auth:  auth,
		nav:   nav,
		lg:    lg,
	}
}

// Login exchanges credentials for a token, persists it and navigates to the
// product view.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	res, err := m.auth.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, TokenKey, res.Token); err != nil {
		return nil, errors.Wrap(err, "persist token")
	}

	m.lg.Info("Logged in", zap.String("username", username))
	m.nav.ToProducts()
	return &Session{Token: res.Token}, nil
}

// Token returns the persisted token, if any.
func (m *Manager) Token(ctx context.Context) (string, bool, error) {
	token, ok, err := m.store.Get(ctx, TokenKey)
	if err != nil {
		return "", false, errors.Wrap(err, "read token")
	}
	if !ok || token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// RequireToken returns the token for a protected call. With no token it
// navigates to the login view and returns api.ErrUnauthorized.
func (m *Manager) RequireToken(ctx context.Context) (string, error) {
	token, ok, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		m.nav.ToLogin()
		return "", api.ErrUnauthorized
	}
	return token, nil
}

// OnEnd registers fn to run whenever the session ends by logout or expiry.
// Data cached for the session is dropped this way.
func (m *Manager) OnEnd(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = append(m.onEnd, fn)
}

func (m *Manager) end() {
	m.mu.Lock()
	hooks := append([]func(){}, m.onEnd...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Logout clears the token and navigates to the login view.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx, TokenKey); err != nil {
		return errors.Wrap(err, "clear token")
	}
	m.end()
	m.lg.Info("Logged out")
	m.nav.ToLogin()
	return nil
}

// Expire handles an unauthorized response from any protected endpoint: the
// token is cleared and the user is sent to the login view. There is no
// refresh.
func (m *Manager) Expire(ctx context.Context) {
	if err := m.store.Delete(ctx, TokenKey); err != nil {
		m.lg.Warn("Failed to clear expired token", zap.Error(err))
	}
	m.end()
	m.lg.Info("Session expired")
	m.nav.ToLogin()
}

// Validate probes a protected endpoint with the stored token. Only a
// successful response counts as valid; any failure clears the token.
func (m *Manager) Validate(ctx context.Context) bool {
	token, ok, err := m.Token(ctx)
	if err != nil || !ok {
		m.nav.ToLogin()
		return false
	}

	if err := m.auth.Probe(ctx, token); err != nil {
		m.lg.Debug("Token validation failed", zap.Error(err))
		m.Expire(ctx)
		return false
	}
	return true
}
