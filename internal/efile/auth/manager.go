// Package auth acquires, caches and refreshes the bearer token for the e-filing service.
package auth

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/efile/efileapi"
	"eviction-tracker/efiling/internal/resilience/retry"
	"eviction-tracker/efiling/internal/security"
)

const (
	DefaultTTL          = time.Hour
	DefaultSafetyBuffer = 60 * time.Second
)

// ErrNoCredentials is returned when the manager was built without a username or password.
var ErrNoCredentials = errors.New("auth: e-filing credentials not configured")

// Authenticator performs the login call.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (efileapi.Login, error)
}

// Config configures a Manager.
type Config struct {
	Username string
	Password string
	// TTL is assumed when the service reports no expiry. Defaults to one hour.
	TTL time.Duration
	// SafetyBuffer refreshes a token this long before it nominally expires.
	SafetyBuffer time.Duration
	Retry        retry.Policy
}

// Manager owns the process's AuthToken. It is safe for concurrent use and never runs two
// logins for the same credentials at once.
type Manager struct {
	api    Authenticator
	cfg    Config
	flight singleflight.Group
	nowF   func() time.Time

	mu    sync.Mutex
	token domain.AuthToken
}

// NewManager returns a Manager with defaults applied.
func NewManager(api Authenticator, cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SafetyBuffer < 0 {
		cfg.SafetyBuffer = 0
	}
	if cfg.Retry.Permanent == nil {
		cfg.Retry.Permanent = domain.NewRetryClassifier(nil).Permanent
	}
	return &Manager{api: api, cfg: cfg, nowF: time.Now}
}

// GetValidToken returns the cached token when it is usable for at least the safety buffer,
// otherwise it authenticates. Concurrent callers share one login.
func (m *Manager) GetValidToken(ctx context.Context) (domain.AuthToken, error) {
	if tok, ok := m.cached(); ok {
		return tok, nil
	}
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return domain.AuthToken{}, ErrNoCredentials
	}

	// The shared login must not die with the first caller's context.
	ch := m.flight.DoChan(security.Fingerprint(m.cfg.Username), func() (any, error) {
		if tok, ok := m.cached(); ok {
			return tok, nil
		}
		tok, err := m.Authenticate(context.WithoutCancel(ctx), m.cfg.Username, m.cfg.Password)
		if err != nil {
			return domain.AuthToken{}, err
		}
		m.mu.Lock()
		m.token = tok
		m.mu.Unlock()
		return tok, nil
	})
	select {
	case <-ctx.Done():
		return domain.AuthToken{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.AuthToken{}, res.Err
		}
		return res.Val.(domain.AuthToken), nil
	}
}

func (m *Manager) cached() (domain.AuthToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token.Value == "" || m.IsTokenExpired(m.token.ExpiresAt.Add(-m.cfg.SafetyBuffer)) {
		return domain.AuthToken{}, false
	}
	return m.token, true
}

// Authenticate logs in with the given credentials under the retry policy. It does not touch the cache.
// Credential rejections fail on the first attempt.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (domain.AuthToken, error) {
	p := m.cfg.Retry
	onRetry := p.OnRetry
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Printf("auth: login for %s failed (attempt %d), retrying in %v: %v", security.MaskIdentity(username), attempt, delay, err)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}
	login, err := retry.DoValue(ctx, p, func(ctx context.Context) (efileapi.Login, error) {
		return m.api.Authenticate(ctx, username, password)
	})
	if err != nil {
		return domain.AuthToken{}, err
	}
	return domain.AuthToken{Value: login.Token, ExpiresAt: m.expiry(login)}, nil
}

// expiry prefers the service's expires_in, then the token's own exp claim, then the configured TTL.
func (m *Manager) expiry(login efileapi.Login) time.Time {
	now := m.nowF()
	if login.ExpiresIn > 0 {
		return now.Add(login.ExpiresIn)
	}
	if exp, err := security.TokenExpiry(login.Token); err == nil {
		return exp
	}
	return now.Add(m.cfg.TTL)
}

// IsTokenExpired reports whether a token expiring at expiresAt is unusable now.
func (m *Manager) IsTokenExpired(expiresAt time.Time) bool {
	return domain.IsTokenExpired(m.nowF(), expiresAt)
}

// Invalidate drops the cached token if it still holds value, so a stale caller cannot evict a newer token.
func (m *Manager) Invalidate(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token.Value != "" && security.FingerprintEqual(value, security.Fingerprint(m.token.Value)) {
		m.token = domain.AuthToken{}
	}
}

// Reset drops the cached token unconditionally.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.token = domain.AuthToken{}
	m.mu.Unlock()
}
