package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// Remote is the subset of the backend the manager talks to.
type Remote interface {
	LoginURL(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, code string) (*models.TokenRecord, error)
	AuthStatus(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Remote    Remote
	Store     *Store
	Navigator shared.Navigator
	Logger    *log.Logger
	Now       func() time.Time
}

// Manager is the single writer of the session.
type Manager struct {
	remote    Remote
	store     *Store
	navigator shared.Navigator
	logger    *log.Logger
	now       func() time.Time

	mu sync.Mutex
	// epoch is bumped by Logout so an exchange that finishes afterwards cannot resurrect the session.
	epoch   uint64
	pending bool
	// confirmed is set when the backend vouched for the session; local expiry is then not applied.
	confirmed bool
}

// NewManager creates a manager and restores any persisted token record.
//
// The session starts Unauthenticated, or Expired when the restored record has already expired.
func NewManager(ctx context.Context, opts ManagerOpts) *Manager {
	if opts.Store == nil {
		opts.Store = NewStore(nil)
	}
	if opts.Navigator == nil {
		opts.Navigator = shared.BrowserNavigator
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		remote:    opts.Remote,
		store:     opts.Store,
		navigator: opts.Navigator,
		logger:    opts.Logger,
		now:       opts.Now,
	}

	rec, err := m.store.Restore(ctx)
	switch {
	case err != nil:
		m.logger.Warn("failed to restore token", "error", err)
	case rec != nil && rec.ExpiredAt(m.now()):
		m.store.SetStatus(models.Expired)
		m.logger.Debug("restored token has expired", "expires_at", rec.Expiry())
	case rec != nil:
		m.logger.Debug("restored token", "expires_at", rec.Expiry())
	}

	return m
}

// Session returns a copy of the current session with local expiry applied.
func (m *Manager) Session() models.Session {
	m.mu.Lock()
	confirmed := m.confirmed
	m.mu.Unlock()

	s := m.store.Get()
	if s.Status == models.Authenticated && !confirmed && s.Token.ExpiredAt(m.now()) {
		s.Status = models.Expired
	}
	return s
}

// Authenticated reports whether the current session is authenticated.
func (m *Manager) Authenticated() bool {
	return m.Session().Status == models.Authenticated
}

// InitiateLogin fetches the authorization URL and sends the navigator to it. The session is not changed.
//
// A navigator failure is logged and the URL is still returned so it can be shown to the user.
func (m *Manager) InitiateLogin(ctx context.Context) (string, error) {
	authURL, err := m.remote.LoginURL(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrAuthInitiation, err)
	}

	if err := m.navigator.Navigate(authURL); err != nil {
		m.logger.Warn("failed to open authorization page", "url", authURL, "error", err)
	}

	m.logger.Debug("login initiated", "url", authURL)
	return authURL, nil
}

// CompleteCallback exchanges the authorization code for a session.
//
// The session is PendingCallback while the exchange runs; a second call in that window fails without a request.
// If the session was Authenticated before a failed exchange it is left as it was, otherwise it becomes Unauthenticated.
func (m *Manager) CompleteCallback(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: %w: authorization code", shared.ErrAuthExchange, shared.ErrMissingArgument)
	}

	m.mu.Lock()
	if m.pending {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", shared.ErrAuthExchange, shared.ErrCallbackInProgress)
	}
	m.pending = true
	epoch := m.epoch
	previous := m.store.Get()
	m.store.SetStatus(models.PendingCallback)
	m.mu.Unlock()

	rec, err := m.remote.ExchangeCode(ctx, code)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = false

	if epoch != m.epoch {
		m.logger.Debug("discarding callback result after logout")
		return fmt.Errorf("%w: session was logged out during the exchange", shared.ErrAuthExchange)
	}

	if err != nil {
		if previous.Status == models.Authenticated {
			m.store.SetStatus(models.Authenticated)
		} else {
			m.store.SetStatus(models.Unauthenticated)
		}
		m.logger.Debug("callback exchange failed", "error", err)
		return fmt.Errorf("%w: %w", shared.ErrAuthExchange, err)
	}

	next := models.Session{Status: models.Authenticated, Token: previous.Token}
	if rec != nil {
		next.Token = rec
	}
	if err := m.store.Set(ctx, next); err != nil {
		m.logger.Warn("failed to persist token", "error", err)
	}
	m.confirmed = false

	m.logger.Info("authenticated")
	return nil
}

// RefreshStatus asks the backend whether the session is authenticated.
//
// Errors are logged and leave the session Unauthenticated; they are never returned.
// A status check does not override an exchange in progress.
func (m *Manager) RefreshStatus(ctx context.Context) models.Session {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	authenticated, err := m.remote.AuthStatus(ctx)
	if err != nil {
		m.logger.Warn("status check failed", "error", err)
	}

	m.mu.Lock()
	if epoch == m.epoch && !m.pending {
		if authenticated && err == nil {
			m.store.SetStatus(models.Authenticated)
			m.confirmed = true
		} else {
			m.store.SetStatus(models.Unauthenticated)
			m.confirmed = false
		}
	}
	m.mu.Unlock()

	return m.Session()
}

// EnsureAuthenticated confirms the session with the backend before protected work.
//
// It fails with [shared.ErrNotAuthenticated], also matching [shared.ErrTokenExpired] when the held token has expired.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	s := m.RefreshStatus(ctx)
	switch {
	case s.Status == models.Authenticated:
		return nil
	case s.Status == models.PendingCallback:
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, shared.ErrCallbackInProgress)
	case s.Token.ExpiredAt(m.now()):
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, shared.ErrTokenExpired)
	}
	return shared.ErrNotAuthenticated
}

// Logout ends the session on the backend and clears local state.
//
// Local teardown always happens, even when ctx is already done. The remote error, if any, is returned afterwards.
func (m *Manager) Logout(ctx context.Context) error {
	remoteErr := m.remote.Logout(ctx)
	if remoteErr != nil {
		m.logger.Warn("logout request failed", "error", remoteErr)
		remoteErr = fmt.Errorf("logout request failed: %w", remoteErr)
	}

	m.mu.Lock()
	m.epoch++
	m.confirmed = false
	m.mu.Unlock()

	clearErr := m.store.Clear(context.WithoutCancel(ctx))
	if clearErr != nil {
		m.logger.Warn("failed to clear persisted token", "error", clearErr)
		clearErr = fmt.Errorf("failed to clear persisted token: %w", clearErr)
	}

	m.logger.Info("logged out")
	return errors.Join(remoteErr, clearErr)
}
