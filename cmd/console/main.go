package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-console/internal/adapter/dataservice"
	httpadapter "github.com/couchcryptid/disaster-console/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-console/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-console/internal/adapter/ws"
	"github.com/couchcryptid/disaster-console/internal/config"
	"github.com/couchcryptid/disaster-console/internal/console"
	"github.com/couchcryptid/disaster-console/internal/events"
	"github.com/couchcryptid/disaster-console/internal/geometry"
	"github.com/couchcryptid/disaster-console/internal/livesync"
	"github.com/couchcryptid/disaster-console/internal/notify"
	"github.com/couchcryptid/disaster-console/internal/observability"
	"github.com/couchcryptid/disaster-console/internal/playback"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	bus := events.NewBus(metrics)

	queue := notify.NewQueue(notify.Config{
		DefaultDuration: cfg.NotificationDuration,
		ExitDelay:       cfg.NotificationExitDelay,
		Limit:           cfg.NotificationLimit,
	}, clock, logger, metrics)
	queue.OnChange(func(list []notify.Notification) {
		bus.Publish(events.KindNotifications, clock.Now(), list)
	})

	scheduler := playback.NewScheduler(cfg.PlaybackTick, clock, logger)
	scheduler.OnChange(func(s playback.State) {
		bus.Publish(events.KindPlayback, clock.Now(), s)
	})

	client := dataservice.NewClient(cfg.DataServiceURL, cfg.DataServiceTimeout, logger, metrics)
	planner := dataservice.NewCachedPlanner(client, cfg.PlannerCacheSize, metrics)
	logger.Info("data service configured",
		"url", cfg.DataServiceURL,
		"timeout", cfg.DataServiceTimeout,
		"planner_cache_size", cfg.PlannerCacheSize,
		"route_geometry", cfg.RouteGeometry,
	)

	// Snapshot publication is feature-flagged via KAFKA_ENABLED.
	var sink livesync.SnapshotSink
	var writer *kafkaadapter.SnapshotWriter
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewSnapshotWriter(cfg, logger)
		sink = writer
		logger.Info("snapshot publication enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("snapshot publication disabled")
	}

	engine := livesync.New(client, livesync.Options{
		Interval: cfg.PollInterval,
		Pulse:    cfg.HeartbeatPulse,
		Sink:     sink,
		Notifier: queue,
		Events:   bus,
	}, clock, logger, metrics)

	session := console.New(engine, planner, client, geometry.NewValidator(logger, metrics), console.Options{
		RouteGeometry: cfg.RouteGeometry,
		Notifier:      queue,
		Events:        bus,
	}, clock, logger)

	// New renderers get the full current state before the live stream.
	hub := ws.NewHub(bus, func() []events.Event {
		now := clock.Now()
		return []events.Event{
			{Kind: events.KindSnapshot, At: now, Payload: session.Snapshot()},
			{Kind: events.KindSyncStatus, At: now, Payload: engine.Status()},
			{Kind: events.KindNotifications, At: now, Payload: queue.List()},
			{Kind: events.KindPlayback, At: now, Payload: scheduler.State()},
			{Kind: events.KindTheme, At: now, Payload: session.Theme()},
			{Kind: events.KindOverlays, At: now, Payload: session.Overlays()},
		}
	}, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Console:       session,
		Sync:          engine,
		Notifications: queue,
		Playback:      scheduler,
		Stream:        hub,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start sync engine.
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil {
			logger.Error("sync engine error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-engineDone:
	case <-shutdownCtx.Done():
		logger.Warn("sync engine did not stop before the shutdown timeout")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	bus.Close()
	scheduler.Close()
	queue.Close()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
