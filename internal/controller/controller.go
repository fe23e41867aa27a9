// Package controller composes the session manager, stream resolver and now-playing synchronizer over one backend gateway.
//
// A single [Controller] type serves every platform. The platform only decides which persistence capability is injected:
// web builds keep the token in memory, mobile builds persist token_info and the session cookie to a file or SQLite.
// Playlist and now-playing work is gated on [Controller.RequireSession]; search and streams need no session.
package controller

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/nowplaying"
	"github.com/desertthunder/tunebridge/internal/repositories"
	"github.com/desertthunder/tunebridge/internal/services"
	"github.com/desertthunder/tunebridge/internal/session"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/desertthunder/tunebridge/internal/stream"
)

// Sink receives a resolved stream. Playback itself happens outside the controller.
type Sink interface {
	Play(ctx context.Context, result *models.StreamResult) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, result *models.StreamResult) error

func (f SinkFunc) Play(ctx context.Context, result *models.StreamResult) error { return f(ctx, result) }

// Options configures [New]. Only Config is required.
type Options struct {
	Config     *shared.Config
	Logger     *log.Logger
	Navigator  shared.Navigator
	// HTTPClient overrides the transport. A client without a jar gets the session jar.
	HTTPClient *http.Client
	// DB backs sqlite persistence and the resolution log. When nil and one is needed, it is opened from Config.Database.
	DB *sql.DB
	// Persister overrides the platform choice.
	Persister session.Persister
	NewTicker func(time.Duration) nowplaying.Ticker
	Now       func() time.Time
}

// Controller is the single entry point used by views.
type Controller struct {
	cfg      *shared.Config
	logger   *log.Logger
	gateway  *services.Gateway
	session  *session.Manager
	resolver *stream.Resolver
	syncer   *nowplaying.Synchronizer
	history  *repositories.ResolutionRepository

	db     *sql.DB
	ownsDB bool
}

// New builds a [Controller] for the configured platform and restores any persisted session.
func New(ctx context.Context, opts Options) (*Controller, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: controller requires a config", shared.ErrMissingConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	c := &Controller{cfg: cfg, logger: logger, db: opts.DB}

	if c.db == nil && needsDatabase(cfg, opts.Persister) {
		db, err := shared.OpenDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		c.db = db
		c.ownsDB = true
	}

	persister, err := selectPersister(cfg.Session, opts.Persister, c.db)
	if err != nil {
		c.Close()
		return nil, err
	}

	var cookies services.CookieStore
	if cs, ok := persister.(services.CookieStore); ok {
		cookies = cs
	}
	jar, err := services.NewSessionJar(ctx, cfg.API.BaseURL, cookies, shared.WithLogger(logger, "component", "jar"))
	if err != nil {
		c.Close()
		return nil, err
	}

	client := opts.HTTPClient
	switch {
	case client == nil:
		client = services.NewHTTPClient(cfg.API.TimeoutDuration(), jar)
	case client.Jar == nil:
		withJar := *client
		withJar.Jar = jar
		client = &withJar
	}
	api := services.NewAPIService(services.APIOpts{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: client,
		RateLimit:  cfg.API.RateLimit,
		Burst:      cfg.API.Burst,
		Logger:     shared.WithLogger(logger, "component", "api"),
	})
	c.gateway = services.NewGateway(api)

	c.session = session.NewManager(ctx, session.ManagerOpts{
		Remote:    c.gateway,
		Store:     session.NewStore(persister),
		Navigator: opts.Navigator,
		Logger:    shared.WithLogger(logger, "component", "session"),
		Now:       opts.Now,
	})

	var recorder stream.Recorder
	if cfg.Stream.History && c.db != nil {
		c.history = repositories.NewResolutionRepository(c.db)
		recorder = repositories.NewResolutionRecorder(c.history)
	}
	c.resolver = stream.NewResolver(c.gateway, c.gateway, stream.Options{
		DeriveQuery: cfg.Stream.DeriveQuery,
		Recorder:    recorder,
		Logger:      shared.WithLogger(logger, "component", "stream"),
	})

	c.syncer = nowplaying.New(c.gateway, nowplaying.Options{
		Interval:  cfg.NowPlaying.IntervalDuration(),
		Logger:    shared.WithLogger(logger, "component", "nowplaying"),
		NewTicker: opts.NewTicker,
		Now:       opts.Now,
	})

	logger.Debug("controller ready",
		"platform", cfg.Session.Platform, "persistence", fmt.Sprintf("%T", persister),
		"base_url", cfg.API.BaseURL)
	return c, nil
}

func needsDatabase(cfg *shared.Config, override session.Persister) bool {
	if cfg.Stream.History {
		return true
	}
	return override == nil && cfg.Session.PersistsToken() && cfg.Session.Persistence == shared.PersistSQLite
}

func selectPersister(cfg shared.SessionConfig, override session.Persister, db *sql.DB) (session.Persister, error) {
	if override != nil {
		return override, nil
	}
	if !cfg.PersistsToken() {
		return session.NopPersister{}, nil
	}

	switch cfg.Persistence {
	case shared.PersistFile:
		return session.NewFilePersister(cfg.TokenPath)
	case shared.PersistSQLite:
		return repositories.NewTokenRepository(db), nil
	}
	return nil, fmt.Errorf("%w: unknown session.persistence %q", shared.ErrInvalidConfig, cfg.Persistence)
}

// Config returns the configuration the controller was built with.
func (c *Controller) Config() *shared.Config { return c.cfg }

// Gateway returns the shared backend gateway.
func (c *Controller) Gateway() *services.Gateway { return c.gateway }

// Catalog returns the browsing surface of the gateway.
func (c *Controller) Catalog() services.Catalog { return c.gateway }

// Session returns the session manager.
func (c *Controller) Session() *session.Manager { return c.session }

// NowPlaying returns the now-playing synchronizer.
func (c *Controller) NowPlaying() *nowplaying.Synchronizer { return c.syncer }

// RequireSession checks with the backend that the user is signed in.
// The playlist and now-playing views call it before their first request.
func (c *Controller) RequireSession(ctx context.Context) error {
	return c.session.EnsureAuthenticated(ctx)
}

// Follow subscribes to the now-playing feed once the session is confirmed. Polling does not start otherwise.
func (c *Controller) Follow(ctx context.Context) (*nowplaying.Subscription, error) {
	if err := c.RequireSession(ctx); err != nil {
		return nil, err
	}
	return c.syncer.Subscribe(), nil
}

// Resolve turns ref into a stream without playing it.
func (c *Controller) Resolve(ctx context.Context, ref models.TrackRef) (*models.StreamResult, error) {
	return c.resolver.Resolve(ctx, ref)
}

// Play resolves ref and hands the result to sink. The result is not retained.
func (c *Controller) Play(ctx context.Context, ref models.TrackRef, sink Sink) (*models.StreamResult, error) {
	result, err := c.resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	c.logger.Info("stream resolved", "source", result.Source, "title", result.Title)
	if sink == nil {
		return result, nil
	}
	if err := sink.Play(ctx, result); err != nil {
		return result, fmt.Errorf("playback sink failed: %w", err)
	}
	return result, nil
}

// History returns the most recent resolutions.
func (c *Controller) History(ctx context.Context, limit int) ([]repositories.Resolution, error) {
	if c.history == nil {
		return nil, shared.ErrHistoryDisabled
	}
	return c.history.List(ctx, limit)
}

// Close stops polling and releases the database if the controller opened it.
func (c *Controller) Close() error {
	if c.syncer != nil {
		c.syncer.Close()
	}
	if c.ownsDB && c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}
