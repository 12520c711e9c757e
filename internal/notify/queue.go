package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-console/internal/observability"
)

// Type is the visual category of a notification.
type Type string

const (
	Info    Type = "info"
	Success Type = "success"
	Error   Type = "error"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultDuration  = 5 * time.Second
	DefaultExitDelay = 300 * time.Millisecond
)

// Notification is a transient user-facing message.
type Notification struct {
	ID         string        `json:"id"`
	Type       Type          `json:"type"`
	Title      string        `json:"title,omitempty"`
	Message    string        `json:"message"`
	AutoClose  bool          `json:"auto_close"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Config tunes queue timing.
type Config struct {
	// DefaultDuration applies to auto-closing notifications without a duration.
	DefaultDuration time.Duration
	// ExitDelay is added to every auto-close so the renderer can animate the
	// dismissal before the record disappears.
	ExitDelay time.Duration
	// Limit caps concurrent notifications; the oldest is evicted. 0 is unbounded.
	Limit int
}

type item struct {
	n     Notification
	timer clockwork.Timer
}

// Queue holds visible notifications and expires auto-closing ones.
type Queue struct {
	cfg     Config
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	newID   func() string

	mu     sync.Mutex
	items  []*item
	closed bool

	// publishMu serializes change callbacks so subscribers see states in order.
	publishMu sync.Mutex
	onChange  func([]Notification)
}

// NewQueue creates an empty queue. metrics may be nil.
func NewQueue(cfg Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Queue {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultDuration
	}
	if cfg.ExitDelay < 0 {
		cfg.ExitDelay = 0
	}
	return &Queue{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		newID:   uuid.NewString,
	}
}

// OnChange registers fn to receive the visible notifications after every
// change. It must be called before the queue is shared.
func (q *Queue) OnChange(fn func([]Notification)) {
	q.onChange = fn
}

// Enqueue assigns an id, appends n, and schedules its removal when
// AutoClose is set. A closed queue drops n.
func (q *Queue) Enqueue(n Notification) Notification {
	n.ID = q.newID()
	n.CreatedAt = q.clock.Now()
	if n.Type == "" {
		n.Type = Info
	}
	if n.AutoClose && n.Duration <= 0 {
		n.Duration = q.cfg.DefaultDuration
	}
	if n.AutoClose {
		n.DurationMS = n.Duration.Milliseconds()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Debug("notification dropped, queue closed", "message", n.Message)
		return n
	}
	if q.cfg.Limit > 0 && len(q.items) >= q.cfg.Limit {
		q.evictOldestLocked()
	}
	it := &item{n: n}
	if n.AutoClose {
		id := n.ID
		it.timer = q.clock.AfterFunc(n.Duration+q.cfg.ExitDelay, func() { q.expire(id) })
	}
	q.items = append(q.items, it)
	q.mu.Unlock()

	q.logger.Debug("notification enqueued", "id", n.ID, "type", n.Type, "auto_close", n.AutoClose)
	q.publish()
	return n
}

// Dismiss removes the notification with the given id. Dismissing an id that
// is no longer present is a no-op and returns false.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	removed := q.removeLocked(id, true)
	q.mu.Unlock()

	if removed {
		q.publish()
	}
	return removed
}

// List returns the visible notifications, oldest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.listLocked()
}

// Close cancels every pending expiry and rejects further notifications.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for _, it := range q.items {
		if it.timer != nil {
			it.timer.Stop()
		}
	}
}

func (q *Queue) expire(id string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	// The timer has already fired; stopping it again is unnecessary.
	removed := q.removeLocked(id, false)
	q.mu.Unlock()

	if removed {
		q.logger.Debug("notification expired", "id", id)
		q.publish()
	}
}

func (q *Queue) removeLocked(id string, stopTimer bool) bool {
	for i, it := range q.items {
		if it.n.ID != id {
			continue
		}
		if stopTimer && it.timer != nil {
			it.timer.Stop()
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return true
	}
	return false
}

func (q *Queue) evictOldestLocked() {
	oldest := q.items[0]
	if oldest.timer != nil {
		oldest.timer.Stop()
	}
	q.items = q.items[1:]
	q.logger.Debug("notification evicted", "id", oldest.n.ID, "limit", q.cfg.Limit)
}

func (q *Queue) listLocked() []Notification {
	out := make([]Notification, len(q.items))
	for i, it := range q.items {
		out[i] = it.n
	}
	return out
}

func (q *Queue) publish() {
	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	list := q.List()
	if q.metrics != nil {
		q.metrics.NotificationsActive.Set(float64(len(list)))
	}
	if q.onChange != nil {
		q.onChange(list)
	}
}
