// Package ws streams console events to renderers over WebSocket.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/disaster-console/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSize = 64
)

// Hub upgrades requests to WebSocket connections and forwards every bus
// event to them as JSON. Closing the bus ends every stream.
type Hub struct {
	bus      *events.Bus
	initial  func() []events.Event
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a Hub. initial, when non-nil, supplies the events sent to a
// client right after it connects so it can render without waiting for the
// next change.
func NewHub(bus *events.Bus, initial func() []events.Event, logger *slog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		initial: initial,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	stream, cancel := h.bus.Subscribe(subscriberSize)
	defer cancel()

	h.logger.Info("renderer connected", "remote", r.RemoteAddr)
	defer h.logger.Info("renderer disconnected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go h.readLoop(conn, done)

	if h.initial != nil {
		for _, ev := range h.initial() {
			if err := h.write(conn, ev); err != nil {
				return
			}
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "console shutting down"))
				return
			}
			if err := h.write(conn, ev); err != nil {
				h.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, ev events.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// readLoop drains client frames so control messages are processed and
// closes done when the client goes away.
func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
