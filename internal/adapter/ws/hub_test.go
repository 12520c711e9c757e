package ws_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-console/internal/adapter/ws"
	"github.com/couchcryptid/disaster-console/internal/events"
)

type wireEvent struct {
	Kind    events.Kind     `json:"kind"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

var at = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func dial(t *testing.T, bus *events.Bus) *websocket.Conn {
	t.Helper()
	initial := func() []events.Event {
		return []events.Event{{Kind: events.KindTheme, At: at, Payload: "dark"}}
	}
	srv := httptest.NewServer(ws.NewHub(bus, initial, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_SendsInitialThenBusEvents(t *testing.T) {
	bus := events.NewBus(nil)
	t.Cleanup(bus.Close)
	conn := dial(t, bus)

	first := readEvent(t, conn)
	assert.Equal(t, events.KindTheme, first.Kind)
	assert.JSONEq(t, `"dark"`, string(first.Payload))

	// The subscription is in place once the initial events have been sent.
	bus.Publish(events.KindHeartbeat, at, true)

	ev := readEvent(t, conn)
	assert.Equal(t, events.KindHeartbeat, ev.Kind)
	assert.True(t, at.Equal(ev.At))
	assert.JSONEq(t, `true`, string(ev.Payload))
}

func TestHub_BusCloseEndsStream(t *testing.T) {
	bus := events.NewBus(nil)
	conn := dial(t, bus)
	readEvent(t, conn)

	bus.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	bus := events.NewBus(nil)
	t.Cleanup(bus.Close)
	hub := ws.NewHub(bus, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, 400, rec.Code)
}
