package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// CookieStore keeps the backend session cookies across process restarts.
//
// LoadCookies returns (nil, nil) when nothing has been stored. Saving an empty slice removes what was stored.
type CookieStore interface {
	LoadCookies(ctx context.Context) ([]*http.Cookie, error)
	SaveCookies(ctx context.Context, cookies []*http.Cookie) error
}

// SessionJar is an [http.CookieJar] for the backend session.
//
// When a store is set, the cookies for the backend host are written through it every time the backend sets one,
// and restored from it when the jar is created.
type SessionJar struct {
	base   *url.URL
	store  CookieStore
	logger *log.Logger

	mu  sync.Mutex
	jar *cookiejar.Jar
}

// NewSessionJar creates a jar for the backend at baseURL. A nil store keeps cookies in memory only.
func NewSessionJar(ctx context.Context, baseURL string, store CookieStore, logger *log.Logger) (*SessionJar, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid api.base_url %q", shared.ErrInvalidConfig, baseURL)
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	jar, _ := cookiejar.New(nil)
	j := &SessionJar{base: base, store: store, logger: logger, jar: jar}

	if store == nil {
		return j, nil
	}
	cookies, err := store.LoadCookies(ctx)
	switch {
	case err != nil:
		logger.Warn("failed to restore session cookies", "error", err)
	case len(cookies) > 0:
		jar.SetCookies(base, cookies)
		logger.Debug("restored session cookies", "count", len(cookies))
	}
	return j, nil
}

// Cookies implements [http.CookieJar].
func (j *SessionJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// SetCookies implements [http.CookieJar] and mirrors the backend's cookies to the store.
func (j *SessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	j.jar.SetCookies(u, cookies)
	current := j.jar.Cookies(j.base)
	j.mu.Unlock()

	if j.store == nil || u.Host != j.base.Host {
		return
	}
	if err := j.store.SaveCookies(context.Background(), current); err != nil {
		j.logger.Warn("failed to persist session cookies", "error", err)
	}
}

// Reset drops every cookie held in memory. The store is left to the session's own teardown.
func (j *SessionJar) Reset() {
	jar, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

var _ http.CookieJar = (*SessionJar)(nil)
