// Package events is the in-process publish/subscribe channel between the
// console core and its renderers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
package events

import (
	"sync"
	"time"

	"github.com/couchcryptid/disaster-console/internal/observability"
)

// Kind identifies the payload carried by an Event.
type Kind string

const (
	KindSnapshot      Kind = "snapshot"
	KindHeartbeat     Kind = "heartbeat"
	KindSyncStatus    Kind = "sync_status"
	KindNotifications Kind = "notifications"
	KindPlayback      Kind = "playback"
	KindTheme         Kind = "theme"
	KindOverlays      Kind = "overlays"
)

// Event is one published change.
type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Bus fans events out to subscribers.
type Bus struct {
	metrics *observability.Metrics

	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	ch    chan Event
	kinds map[Kind]bool // nil means every kind
}

// NewBus creates a bus. metrics may be nil.
func NewBus(metrics *observability.Metrics) *Bus {
	return &Bus{metrics: metrics, subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel of events with the given buffer size, filtered
// to kinds when any are given. cancel unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers an event of the given kind to every interested subscriber.
func (b *Bus) Publish(kind Kind, at time.Time, payload any) {
	ev := Event{Kind: kind, At: at, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.kinds != nil && !sub.kinds[kind] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			if b.metrics != nil {
				b.metrics.EventsDropped.Inc()
			}
		}
	}
}

// Close closes every subscriber channel. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
