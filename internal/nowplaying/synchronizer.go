// Package nowplaying keeps a snapshot of the user's current track fresh while someone is watching it.
//
// Polling runs only while at least one [Subscription] is open. Ticks never overlap: a tick that finds a request
// still in flight is skipped. When the last subscriber leaves, the ticker stops, the in-flight request is
// cancelled and any response that still arrives is discarded.
package nowplaying

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 5 * time.Second

// Fetcher reads the current track. (nil, nil) means nothing is playing.
type Fetcher interface {
	CurrentTrack(ctx context.Context) (*models.Track, error)
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps [time.NewTicker].
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Options configures a [Synchronizer].
type Options struct {
	Interval  time.Duration
	Logger    *log.Logger
	NewTicker func(time.Duration) Ticker
	Now       func() time.Time
}

// Stats counts polling activity since the synchronizer was created.
type Stats struct {
	Ticks     int // ticks observed, including the immediate first one
	Requests  int // requests issued
	Skipped   int // ticks dropped because a request was in flight
	Failures  int // requests that returned an error
	Discarded int // responses that arrived after teardown
}

// Synchronizer polls a [Fetcher] and fans the latest snapshot out to subscribers.
type Synchronizer struct {
	fetcher   Fetcher
	interval  time.Duration
	logger    *log.Logger
	newTicker func(time.Duration) Ticker
	now       func() time.Time

	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	snapshot *models.PollSnapshot
	gen      uint64
	inFlight bool
	cancel   context.CancelFunc
	stats    Stats
}

// New creates a stopped [Synchronizer].
func New(fetcher Fetcher, opts Options) *Synchronizer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Synchronizer{
		fetcher:   fetcher,
		interval:  opts.Interval,
		logger:    opts.Logger,
		newTicker: opts.NewTicker,
		now:       opts.Now,
		subs:      make(map[*Subscription]struct{}),
	}
}

// Interval returns the polling period.
func (s *Synchronizer) Interval() time.Duration {
	return s.interval
}

// Subscribe attaches a subscriber. The first subscriber starts polling with an immediate tick.
//
// If a snapshot already exists it is delivered on the new subscription's channel straight away.
func (s *Synchronizer) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &Subscription{owner: s, updates: make(chan models.PollSnapshot, 1)}
	s.subs[sub] = struct{}{}

	if len(s.subs) == 1 {
		s.start()
	} else if s.snapshot != nil {
		sub.updates <- *s.snapshot
	}
	return sub
}

// Snapshot returns the latest snapshot, false when there is none.
func (s *Synchronizer) Snapshot() (models.PollSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return models.PollSnapshot{}, false
	}
	return *s.snapshot, true
}

// Running reports whether polling is active.
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stats returns a copy of the counters.
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close detaches every subscriber and stops polling.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.detach()
	}
	s.subs = make(map[*Subscription]struct{})
	s.stop()
}

// start must be called with mu held.
func (s *Synchronizer) start() {
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ticker := s.newTicker(s.interval)

	s.logger.Debug("polling started", "interval", s.interval, "generation", gen)
	go s.loop(ctx, gen, ticker)
}

// stop must be called with mu held.
func (s *Synchronizer) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.gen++
	s.inFlight = false
	s.snapshot = nil
	s.logger.Debug("polling stopped")
}

func (s *Synchronizer) loop(ctx context.Context, gen uint64, ticker Ticker) {
	defer ticker.Stop()

	s.tick(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick(ctx, gen)
		}
	}
}

func (s *Synchronizer) tick(ctx context.Context, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.stats.Ticks++
	if s.inFlight {
		s.stats.Skipped++
		s.logger.Debug("tick skipped, request in flight")
		return
	}
	s.inFlight = true
	s.stats.Requests++
	go s.fetch(ctx, gen)
}

func (s *Synchronizer) fetch(ctx context.Context, gen uint64) {
	track, err := s.fetcher.CurrentTrack(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.stats.Discarded++
		s.logger.Debug("discarding late now-playing response", "generation", gen)
		return
	}
	s.inFlight = false

	if err != nil {
		s.stats.Failures++
		s.logger.Warn("now-playing poll failed", "error", err)
		if s.snapshot == nil {
			s.publish(models.PollSnapshot{FetchedAt: s.now(), Err: err})
		}
		return
	}

	s.publish(models.PollSnapshot{Track: track, FetchedAt: s.now()})
}

// publish must be called with mu held. Each subscriber sees only the latest snapshot.
func (s *Synchronizer) publish(snap models.PollSnapshot) {
	s.snapshot = &snap
	for sub := range s.subs {
		select {
		case sub.updates <- snap:
		default:
			select {
			case <-sub.updates:
			default:
			}
			sub.updates <- snap
		}
	}
}

// Subscription is one attached observer.
type Subscription struct {
	owner   *Synchronizer
	updates chan models.PollSnapshot
	closed  bool
}

// Updates delivers snapshots as they are published. Only the most recent unread snapshot is kept.
// The channel is closed when the subscription is closed.
func (sub *Subscription) Updates() <-chan models.PollSnapshot {
	return sub.updates
}

// Snapshot returns the synchronizer's latest snapshot.
func (sub *Subscription) Snapshot() (models.PollSnapshot, bool) {
	return sub.owner.Snapshot()
}

// Close detaches the subscription. The last one to close stops polling. Closing twice is a no-op.
func (sub *Subscription) Close() {
	s := sub.owner
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.closed {
		return
	}
	sub.detach()
	delete(s.subs, sub)
	if len(s.subs) == 0 {
		s.stop()
	}
}

// detach must be called with the synchronizer's mu held.
func (sub *Subscription) detach() {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.updates)
}
