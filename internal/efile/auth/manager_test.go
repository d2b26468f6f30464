package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"eviction-tracker/efiling/internal/efile/domain"
	"eviction-tracker/efiling/internal/efile/efileapi"
	"eviction-tracker/efiling/internal/resilience/retry"
)

type fakeAPI struct {
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
	login   func(n int32) (efileapi.Login, error)
}

func (f *fakeAPI) Authenticate(ctx context.Context, username, password string) (efileapi.Login, error) {
	n := f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.login(n)
}

type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) { t.c <- time.Now() }
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func newInstantTimer() *instantTimer { return &instantTimer{c: make(chan time.Time, 1)} }

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newTestManager(api Authenticator, now *time.Time) *Manager {
	m := NewManager(api, Config{
		Username: "clerk@example.com",
		Password: "pw",
		Retry:    retry.Policy{Retries: 2, Timer: newInstantTimer()},
	})
	m.nowF = func() time.Time { return *now }
	return m
}

func TestGetValidToken_CachesToken(t *testing.T) {
	now := t0
	api := &fakeAPI{login: func(n int32) (efileapi.Login, error) {
		return efileapi.Login{Token: "tok", ExpiresIn: time.Hour}, nil
	}}
	m := newTestManager(api, &now)

	for i := 0; i < 3; i++ {
		tok, err := m.GetValidToken(context.Background())
		if err != nil {
			t.Fatalf("GetValidToken: %v", err)
		}
		if tok.Value != "tok" || !tok.ExpiresAt.Equal(t0.Add(time.Hour)) {
			t.Errorf("tok = %v", tok)
		}
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}

func TestGetValidToken_RefreshesWithinSafetyBuffer(t *testing.T) {
	now := t0
	api := &fakeAPI{login: func(n int32) (efileapi.Login, error) {
		return efileapi.Login{Token: "tok", ExpiresIn: time.Hour}, nil
	}}
	m := newTestManager(api, &now)
	m.cfg.SafetyBuffer = time.Minute

	if _, err := m.GetValidToken(context.Background()); err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	now = t0.Add(58 * time.Minute)
	if _, err := m.GetValidToken(context.Background()); err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("logins before buffer = %d, want 1", got)
	}
	now = t0.Add(59 * time.Minute)
	if _, err := m.GetValidToken(context.Background()); err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if got := api.calls.Load(); got != 2 {
		t.Errorf("logins inside buffer = %d, want 2", got)
	}
}

func TestGetValidToken_SingleFlight(t *testing.T) {
	now := t0
	api := &fakeAPI{
		gate:    make(chan struct{}),
		started: make(chan struct{}),
		login: func(n int32) (efileapi.Login, error) {
			return efileapi.Login{Token: "tok", ExpiresIn: time.Hour}, nil
		},
	}
	m := newTestManager(api, &now)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.GetValidToken(context.Background())
			if err == nil && tok.Value != "tok" {
				err = errors.New("wrong token " + tok.Value)
			}
			errs <- err
		}()
	}
	<-api.started
	time.Sleep(20 * time.Millisecond)
	close(api.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("GetValidToken: %v", err)
		}
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}

func TestGetValidToken_WaiterCancelDoesNotAbortLogin(t *testing.T) {
	now := t0
	api := &fakeAPI{
		gate:    make(chan struct{}),
		started: make(chan struct{}),
		login: func(n int32) (efileapi.Login, error) {
			return efileapi.Login{Token: "tok", ExpiresIn: time.Hour}, nil
		},
	}
	m := newTestManager(api, &now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.GetValidToken(ctx)
		done <- err
	}()
	<-api.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	close(api.gate)

	tok, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if tok.Value != "tok" {
		t.Errorf("tok = %v", tok)
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}

func TestGetValidToken_AuthErrorNotRetried(t *testing.T) {
	now := t0
	api := &fakeAPI{login: func(n int32) (efileapi.Login, error) {
		return efileapi.Login{}, &domain.AuthenticationError{MessageCode: domain.CodeInvalidCredentials}
	}}
	m := newTestManager(api, &now)

	_, err := m.GetValidToken(context.Background())
	var a *domain.AuthenticationError
	if !errors.As(err, &a) {
		t.Fatalf("err = %v, want AuthenticationError", err)
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}

func TestGetValidToken_ServerErrorRetried(t *testing.T) {
	now := t0
	api := &fakeAPI{login: func(n int32) (efileapi.Login, error) {
		if n < 3 {
			return efileapi.Login{}, &domain.ServerError{StatusCode: 502}
		}
		return efileapi.Login{Token: "tok"}, nil
	}}
	m := newTestManager(api, &now)

	tok, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if !tok.ExpiresAt.Equal(t0.Add(DefaultTTL)) {
		t.Errorf("ExpiresAt = %v, want default TTL", tok.ExpiresAt)
	}
	if got := api.calls.Load(); got != 3 {
		t.Errorf("logins = %d, want 3", got)
	}
}

func TestGetValidToken_NoCredentials(t *testing.T) {
	m := NewManager(&fakeAPI{}, Config{})
	if _, err := m.GetValidToken(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestExpiryFromJWT(t *testing.T) {
	now := t0
	exp := t0.Add(20 * time.Minute)
	jwtTok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	api := &fakeAPI{login: func(n int32) (efileapi.Login, error) { return efileapi.Login{Token: jwtTok}, nil }}
	m := newTestManager(api, &now)

	tok, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if !tok.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, exp)
	}
}

func TestIsTokenExpired_Boundary(t *testing.T) {
	now := t0
	m := newTestManager(&fakeAPI{}, &now)
	if m.IsTokenExpired(t0.Add(time.Nanosecond)) {
		t.Error("expired before expiresAt")
	}
	if !m.IsTokenExpired(t0) {
		t.Error("not expired at expiresAt")
	}
}

func TestInvalidateAndReset(t *testing.T) {
	now := t0
	api := &fakeAPI{login: func(n int32) (efileapi.Login, error) {
		return efileapi.Login{Token: "tok-" + string(rune('0'+n)), ExpiresIn: time.Hour}, nil
	}}
	m := newTestManager(api, &now)

	tok, _ := m.GetValidToken(context.Background())
	m.Invalidate("some-other-token")
	if again, _ := m.GetValidToken(context.Background()); again.Value != tok.Value {
		t.Errorf("stale Invalidate evicted the token")
	}
	m.Invalidate(tok.Value)
	next, _ := m.GetValidToken(context.Background())
	if next.Value == tok.Value {
		t.Errorf("token not refreshed after Invalidate")
	}
	m.Reset()
	if _, err := m.GetValidToken(context.Background()); err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if got := api.calls.Load(); got != 3 {
		t.Errorf("logins = %d, want 3", got)
	}
}
