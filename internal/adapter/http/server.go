package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-console/internal/console"
	"github.com/couchcryptid/disaster-console/internal/livesync"
	"github.com/couchcryptid/disaster-console/internal/notify"
	"github.com/couchcryptid/disaster-console/internal/playback"
)

// writeTimeout bounds a whole request including one data service round trip.
const writeTimeout = 90 * time.Second

// SyncEngine is the part of the sync engine the API exposes.
type SyncEngine interface {
	sharedobs.ReadinessChecker
	Status() livesync.Status
	Poll(ctx context.Context) error
}

// Notifications is the visible notification list.
type Notifications interface {
	List() []notify.Notification
	Dismiss(id string) bool
}

// Deps are the components served by the API. Stream is optional.
type Deps struct {
	Console       *console.Console
	Sync          SyncEngine
	Notifications Notifications
	Playback      *playback.Scheduler
	Stream        http.Handler
}

// Server exposes the console API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the console API, /ws, /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Sync))
	mux.Handle("GET /metrics", promhttp.Handler())
	if deps.Stream != nil {
		mux.Handle("GET /ws", deps.Stream)
	}
	s.routes(mux)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
