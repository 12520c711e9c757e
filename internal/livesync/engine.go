package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/events"
	"github.com/couchcryptid/disaster-console/internal/notify"
	"github.com/couchcryptid/disaster-console/internal/observability"
)

// Defaults for Options fields left zero.
const (
	DefaultInterval = 30 * time.Second
	DefaultPulse    = time.Second
)

// ErrPollInFlight is returned by Poll when another poll has not finished.
var ErrPollInFlight = errors.New("poll already in flight")

// ErrFetch wraps every resource fetch failure returned by Poll.
var ErrFetch = errors.New("fetch failed")

// DataSource is the read side of the Disaster Data Service.
type DataSource interface {
	Zones(ctx context.Context) ([]domain.Zone, error)
	FloodAreas(ctx context.Context) ([]domain.FloodArea, error)
	Infrastructure(ctx context.Context) ([]domain.InfrastructureSite, error)
	Displacement(ctx context.Context) ([]domain.DisplacementArea, error)
	Alerts(ctx context.Context) ([]domain.Alert, error)
	SocialFeed(ctx context.Context) ([]domain.SocialPost, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
}

// SnapshotSink receives every newly merged snapshot.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error
}

// Notifier surfaces sync status messages to the operator.
type Notifier interface {
	Enqueue(n notify.Notification) notify.Notification
}

// Publisher broadcasts engine events to renderers.
type Publisher interface {
	Publish(kind events.Kind, at time.Time, payload any)
}

// Options configures an Engine. Sink, Notifier and Events are optional.
type Options struct {
	Interval time.Duration
	Pulse    time.Duration
	Sink     SnapshotSink
	Notifier Notifier
	Events   Publisher
}

// Status reports synchronization health.
type Status struct {
	Live                bool      `json:"live"`
	Polling             bool      `json:"polling"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Engine polls the data service on a fixed cadence and swaps the canonical
// snapshot atomically on every fully successful poll. A failed poll leaves
// the snapshot untouched.
type Engine struct {
	source  DataSource
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	snapshot atomic.Pointer[domain.Snapshot]
	busy     atomic.Bool
	ready    atomic.Bool
	inflight sync.WaitGroup

	mu     sync.Mutex
	status Status
	pulse  clockwork.Timer
	closed bool
}

// New creates an Engine holding an empty snapshot.
func New(source DataSource, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Pulse <= 0 {
		opts.Pulse = DefaultPulse
	}
	e := &Engine{
		source:  source,
		opts:    opts,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
	e.snapshot.Store(domain.EmptySnapshot())
	return e
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.snapshot.Load()
}

// Status returns the current synchronization health.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.status
	s.Polling = e.busy.Load()
	return s
}

// CheckReadiness returns nil once at least one poll has succeeded.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("no successful sync yet")
	}
	return nil
}

// Run polls immediately and then on every interval until ctx is cancelled.
// It waits for in-flight polls and cancels the heartbeat timer before
// returning.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("sync engine started", "interval", e.opts.Interval, "pulse", e.opts.Pulse)
	e.metrics.SyncRunning.Set(1)
	defer e.metrics.SyncRunning.Set(0)

	ticker := e.clock.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	e.schedule(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopping", "reason", ctx.Err())
			e.inflight.Wait()
			e.stop()
			return nil
		case <-ticker.Chan():
			e.schedule(ctx)
		}
	}
}

func (e *Engine) schedule(ctx context.Context) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := e.Poll(ctx); err != nil && !errors.Is(err, ErrPollInFlight) && ctx.Err() == nil {
			e.logger.Debug("scheduled poll failed", "error", err)
		}
	}()
}

// Poll runs one batch fetch and merge. It returns ErrPollInFlight without
// touching any state when a poll is already running.
func (e *Engine) Poll(ctx context.Context) error {
	if !e.busy.CompareAndSwap(false, true) {
		e.metrics.PollOutcomes.WithLabelValues("skipped").Inc()
		e.logger.Debug("poll skipped, previous poll still in flight")
		return ErrPollInFlight
	}
	defer e.busy.Store(false)

	start := e.clock.Now()
	e.beginPulse(start)

	batch, err := e.fetchBatch(ctx)
	e.metrics.PollDuration.Observe(e.clock.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.metrics.PollOutcomes.WithLabelValues("failure").Inc()
		e.recordFailure(err)
		return err
	}

	next := Merge(e.snapshot.Load(), batch, e.clock.Now())
	e.snapshot.Store(next)
	e.ready.Store(true)
	e.metrics.PollOutcomes.WithLabelValues("success").Inc()
	e.metrics.LastSuccessfulSync.Set(float64(next.LastSuccessfulSync.Unix()))
	e.recordSuccess(start, next)

	if e.opts.Sink != nil {
		if err := e.opts.Sink.PublishSnapshot(ctx, next); err != nil {
			e.metrics.SnapshotPublishError.Inc()
			e.logger.Error("snapshot publish failed", "error", err)
		}
	}
	return nil
}

// fetchBatch issues all seven fetches concurrently and waits for every one
// to settle. Any failure fails the batch.
func (e *Engine) fetchBatch(ctx context.Context) (Batch, error) {
	var b Batch
	var g errgroup.Group
	fetchInto(ctx, e, &g, "zones", &b.Zones, e.source.Zones)
	fetchInto(ctx, e, &g, "flood_areas", &b.FloodAreas, e.source.FloodAreas)
	fetchInto(ctx, e, &g, "infrastructure", &b.Infrastructure, e.source.Infrastructure)
	fetchInto(ctx, e, &g, "displacement", &b.Displacement, e.source.Displacement)
	fetchInto(ctx, e, &g, "alerts", &b.Alerts, e.source.Alerts)
	fetchInto(ctx, e, &g, "social_feed", &b.SocialFeed, e.source.SocialFeed)
	fetchInto(ctx, e, &g, "statistics", &b.Statistics, e.source.Statistics)
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}
	return b, nil
}

func fetchInto[T any](ctx context.Context, e *Engine, g *errgroup.Group, resource string, dst *T, fetch func(context.Context) (T, error)) {
	g.Go(func() error {
		v, err := fetch(ctx)
		if err != nil {
			e.metrics.ResourceFetches.WithLabelValues(resource, "error").Inc()
			e.logger.Warn("resource fetch failed", "resource", resource, "error", err)
			return fmt.Errorf("%w: fetch %s: %w", ErrFetch, resource, err)
		}
		e.metrics.ResourceFetches.WithLabelValues(resource, "success").Inc()
		*dst = v
		return nil
	})
}

// beginPulse raises the live flag and schedules it to drop after the pulse
// length. It runs for every attempted poll regardless of outcome.
func (e *Engine) beginPulse(now time.Time) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.status.Live = true
	e.status.LastAttempt = now
	if e.pulse != nil {
		e.pulse.Stop()
	}
	e.pulse = e.clock.AfterFunc(e.opts.Pulse, e.endPulse)
	e.mu.Unlock()

	e.publish(events.KindHeartbeat, true)
}

func (e *Engine) endPulse() {
	e.mu.Lock()
	if e.closed || !e.status.Live {
		e.mu.Unlock()
		return
	}
	e.status.Live = false
	e.mu.Unlock()

	e.publish(events.KindHeartbeat, false)
}

func (e *Engine) recordFailure(err error) {
	e.mu.Lock()
	firstFailure := e.status.ConsecutiveFailures == 0
	e.status.ConsecutiveFailures++
	e.status.LastError = err.Error()
	lastSuccess := e.status.LastSuccess
	status := e.status
	e.mu.Unlock()

	e.logger.Warn("poll failed, keeping previous snapshot",
		"error", err,
		"consecutive_failures", status.ConsecutiveFailures,
		"last_success", lastSuccess,
	)
	e.publish(events.KindSyncStatus, status)

	if firstFailure {
		msg := "No data has been received yet."
		if !lastSuccess.IsZero() {
			msg = fmt.Sprintf("Showing data from %s.", lastSuccess.UTC().Format(time.RFC3339))
		}
		e.notify(notify.Notification{
			Type:      notify.Error,
			Title:     "Live sync failed",
			Message:   msg,
			AutoClose: true,
		})
	}
}

func (e *Engine) recordSuccess(at time.Time, snap *domain.Snapshot) {
	e.mu.Lock()
	recovered := e.status.ConsecutiveFailures > 0
	e.status.ConsecutiveFailures = 0
	e.status.LastError = ""
	e.status.LastSuccess = snap.LastSuccessfulSync
	status := e.status
	e.mu.Unlock()

	e.logger.Info("snapshot updated",
		"zones", len(snap.Zones),
		"alerts", len(snap.Alerts),
		"duration", e.clock.Since(at),
	)
	e.publish(events.KindSnapshot, snap)
	e.publish(events.KindSyncStatus, status)

	if recovered {
		e.notify(notify.Notification{
			Type:      notify.Success,
			Message:   "Live sync restored",
			AutoClose: true,
		})
	}
}

func (e *Engine) stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.status.Live = false
	if e.pulse != nil {
		e.pulse.Stop()
		e.pulse = nil
	}
}

func (e *Engine) notify(n notify.Notification) {
	if e.opts.Notifier != nil {
		e.opts.Notifier.Enqueue(n)
	}
}

func (e *Engine) publish(kind events.Kind, payload any) {
	if e.opts.Events != nil {
		e.opts.Events.Publish(kind, e.clock.Now(), payload)
	}
}
