// Command mockservice runs a deterministic local Disaster Data Service for
// development. It serves the seven read endpoints, routes with an encoded
// polyline, rescue coverage isolines and a rate-limited image comparison.
//
// Usage:
//
//	go run ./cmd/mockservice -addr :8000 -compare-burst 3 -compare-window 1m
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	addr := flag.String("addr", sharedcfg.EnvOrDefault("MOCK_ADDR", ":8000"), "listen address")
	burst := flag.Int("compare-burst", 3, "image comparisons allowed per window before rate limiting")
	window := flag.Duration("compare-window", time.Minute, "image comparison rate limit window")
	flag.Parse()

	logger := sharedobs.NewLogger(sharedcfg.EnvOrDefault("LOG_LEVEL", "info"), "text")
	svc := newService(*burst, *window, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           svc.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("mock data service listening", "addr", *addr, "zones", len(svc.data.zones))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
}
