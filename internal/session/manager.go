// Package session is the client half of authentication. A Manager holds the
// signed-in user with its access and refresh tokens, persists them through a
// Store and renews the access token while a refresh token is present. The
// renewal period follows the validity the server last reported.
//
// States:
//
//	UNAUTHENTICATED --Login/Restore--> AUTHENTICATED --Renew ok--> AUTHENTICATED
//	AUTHENTICATED --Logout / Renew failure--> UNAUTHENTICATED
//
// A failed renewal is not retried; it signs the user out.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/client"
)

// DefaultRenewPeriod suits the server's default 15 minute access tokens.
const DefaultRenewPeriod = 14 * time.Minute

const renewTimeout = 30 * time.Second

// RenewPeriodFor returns the renewal period for tokens valid for v: one
// fifteenth of the validity before expiry.
func RenewPeriodFor(v time.Duration) time.Duration {
	if v <= 0 {
		return DefaultRenewPeriod
	}
	return v * 14 / 15
}

// Backend is the slice of the API the manager needs. *client.Client
// satisfies it.
type Backend interface {
	Login(ctx context.Context, email, password string) (*client.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*client.RefreshResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

type Option func(*Manager)

func WithClock(c clockwork.Clock) Option { return func(m *Manager) { m.clock = c } }

func WithRenewPeriod(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.period = d
			m.fixedPeriod = true
		}
	}
}

// WithOnChange registers fn to be called after every state change with the
// new state, or nil once signed out. fn runs without the manager's lock held.
func WithOnChange(fn func(*State)) Option { return func(m *Manager) { m.onChange = fn } }

type Manager struct {
	backend  Backend
	store    Store
	lg       *zap.SugaredLogger
	clock    clockwork.Clock
	period   time.Duration
	onChange func(*State)

	// set by WithRenewPeriod; otherwise the period follows expiresIn
	fixedPeriod bool

	token atomic.Pointer[string]

	mu    sync.Mutex
	state *State
	gen   uint64
	stop  chan struct{}
	wg    sync.WaitGroup
}

func NewManager(backend Backend, store Store, lg *zap.SugaredLogger, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		store:   store,
		lg:      lg,
		clock:   clockwork.NewRealClock(),
		period:  DefaultRenewPeriod,
	}
	for _, o := range opts {
		o(m)
	}
	empty := ""
	m.token.Store(&empty)
	return m
}

// AccessToken is safe to call from any goroutine; it never observes a
// half-written token.
func (m *Manager) AccessToken() string { return *m.token.Load() }

// Snapshot returns a copy of the current state, or nil when signed out.
func (m *Manager) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	st := *m.state
	return &st
}

func (m *Manager) Authenticated() bool { return m.Snapshot() != nil }

// Restore rebuilds the session from the store. It reports whether a session
// was found.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	st, err := m.store.Load()
	if err != nil {
		return false, err
	}
	if st == nil || st.Token == "" {
		return false, nil
	}
	m.mu.Lock()
	m.setLocked(st)
	m.mu.Unlock()
	m.lg.Debugw("session restored", "user", st.User.Email)
	m.notify(st)
	return true, nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (*State, error) {
	res, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	st := &State{User: res.User, Token: res.Token, RefreshToken: res.RefreshToken, ExpiresIn: res.ExpiresIn}

	m.mu.Lock()
	m.setLocked(st)
	m.mu.Unlock()
	if err := m.store.Save(*st); err != nil {
		m.lg.Warnw("persist session failed", "error", err)
	}
	m.lg.Infow("signed in", "user", st.User.Email, "role", st.User.Role)
	m.notify(st)
	out := *st
	return &out, nil
}

// Logout clears local state first and then asks the server to revoke the
// session. Server failures are logged only.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	token := ""
	if m.state != nil {
		token = m.state.Token
	}
	m.clearLocked()
	m.mu.Unlock()
	return m.finishSignOut(ctx, token)
}

func (m *Manager) finishSignOut(ctx context.Context, token string) error {
	err := m.store.Clear()
	m.notify(nil)
	if token != "" {
		if lerr := m.backend.Logout(ctx, token); lerr != nil {
			m.lg.Warnw("server logout failed", "error", lerr)
		}
	}
	return err
}

// Renew exchanges the refresh token for a new access token. Only the access
// token changes. Any failure signs the user out.
func (m *Manager) Renew(ctx context.Context) error {
	m.mu.Lock()
	if m.state == nil || m.state.RefreshToken == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: not signed in", apperr.ErrAuth)
	}
	refresh := m.state.RefreshToken
	gen := m.gen
	m.mu.Unlock()

	res, err := m.backend.Refresh(ctx, refresh)

	m.mu.Lock()
	if gen != m.gen {
		// signed out or signed in again while the request was in flight
		m.mu.Unlock()
		return fmt.Errorf("%w: session changed during renewal", apperr.ErrAuth)
	}
	if err != nil {
		token := m.state.Token
		m.clearLocked()
		m.mu.Unlock()
		m.lg.Warnw("token renewal failed, signing out", "error", err)
		if cerr := m.finishSignOut(ctx, token); cerr != nil {
			m.lg.Warnw("clear session failed", "error", cerr)
		}
		return err
	}
	m.state.Token = res.Token
	m.token.Store(&res.Token)
	if res.ExpiresIn > 0 {
		m.state.ExpiresIn = res.ExpiresIn
	}
	if m.adoptPeriodLocked(m.state.ExpiresIn) && m.stop != nil {
		m.stopLocked()
		m.scheduleLocked()
	}
	st := *m.state
	m.mu.Unlock()

	if err := m.store.Save(st); err != nil {
		m.lg.Warnw("persist session failed", "error", err)
	}
	m.lg.Debugw("access token renewed", "user", st.User.Email)
	m.notify(&st)
	return nil
}

// Close stops the renewal loop and waits for it to exit. The stored session
// is left in place.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopLocked()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) setLocked(st *State) {
	m.gen++
	m.state = st
	tok := st.Token
	m.token.Store(&tok)
	m.adoptPeriodLocked(st.ExpiresIn)
	m.stopLocked()
	if st.RefreshToken != "" {
		m.scheduleLocked()
	}
}

// adoptPeriodLocked derives the renewal period from a token validity in
// seconds and reports whether the period changed.
func (m *Manager) adoptPeriodLocked(expiresIn int64) bool {
	if m.fixedPeriod || expiresIn <= 0 {
		return false
	}
	p := RenewPeriodFor(time.Duration(expiresIn) * time.Second)
	if p == m.period {
		return false
	}
	m.period = p
	return true
}

func (m *Manager) clearLocked() {
	m.gen++
	m.state = nil
	empty := ""
	m.token.Store(&empty)
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *Manager) scheduleLocked() {
	stop := make(chan struct{})
	m.stop = stop
	ticker := m.clock.NewTicker(m.period)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
				_ = m.Renew(ctx)
				cancel()
			}
		}
	}()
}

func (m *Manager) notify(st *State) {
	if m.onChange == nil {
		return
	}
	if st != nil {
		cp := *st
		st = &cp
	}
	m.onChange(st)
}
