package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTick is the playback cadence.
const DefaultTick = time.Second

// Scheduler owns a State and advances it on a ticker while playing. Every
// transition to idle cancels the pending tick; no tick is applied after it.
type Scheduler struct {
	tick   time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	stop   chan struct{} // non-nil while a play run is active
	closed bool

	publishMu sync.Mutex
	onChange  func(State)
}

// NewScheduler creates an idle scheduler at the present.
func NewScheduler(tick time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		tick:   tick,
		clock:  clock,
		logger: logger,
		state:  Initial(),
	}
}

// OnChange registers fn to receive the state after every transition. It must
// be called before the scheduler is shared.
func (s *Scheduler) OnChange(fn func(State)) {
	s.onChange = fn
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Play starts a play run unless already playing or at the present.
func (s *Scheduler) Play() State {
	return s.apply(State.Play)
}

// Pause stops playback at the current index.
func (s *Scheduler) Pause() State {
	return s.apply(State.Pause)
}

// Toggle pauses or resumes playback.
func (s *Scheduler) Toggle() State {
	return s.apply(State.Toggle)
}

// SetIndex scrubs to i and stops playback.
func (s *Scheduler) SetIndex(i int) State {
	return s.apply(func(st State) State { return st.SetIndex(i) })
}

// Reset returns to the present and stops playback.
func (s *Scheduler) Reset() State {
	return s.apply(State.Reset)
}

// Close cancels any pending tick. Later transitions still update state but
// never start a ticker.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopLocked()
	s.state = s.state.Pause()
}

func (s *Scheduler) apply(transition func(State) State) State {
	s.mu.Lock()
	prev := s.state
	next := transition(prev)
	if s.closed {
		next = next.Pause()
	}
	s.state = next

	switch {
	case !next.Playing:
		s.stopLocked()
	case s.stop == nil:
		s.startLocked()
	}
	s.mu.Unlock()

	if next != prev {
		s.logger.Debug("playback transition", "index", next.Index, "playing", next.Playing)
	}
	s.publish()
	return next
}

func (s *Scheduler) startLocked() {
	stop := make(chan struct{})
	s.stop = stop
	ticker := s.clock.NewTicker(s.tick)
	go s.run(ticker, stop)
}

func (s *Scheduler) stopLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Scheduler) run(ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !s.advance(stop) {
				return
			}
		}
	}
}

// advance applies one tick unless the run was cancelled. It reports whether
// the run continues.
func (s *Scheduler) advance(stop <-chan struct{}) bool {
	s.mu.Lock()
	select {
	case <-stop:
		s.mu.Unlock()
		return false
	default:
	}

	s.state = s.state.Tick()
	playing := s.state.Playing
	if !playing {
		// The run ended on its own; release it without closing so a new
		// run can start.
		s.stop = nil
		s.logger.Debug("playback reached present")
	}
	s.mu.Unlock()

	s.publish()
	return playing
}

func (s *Scheduler) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if s.onChange != nil {
		s.onChange(s.State())
	}
}
