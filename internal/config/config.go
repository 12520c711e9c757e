package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Route geometry modes.
const (
	RouteGeometryStraight = "straight"
	RouteGeometryPolyline = "polyline"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Disaster Data Service.
	DataServiceURL     string
	DataServiceTimeout time.Duration
	PlannerCacheSize   int
	RouteGeometry      string

	// Sync and playback cadence.
	PollInterval   time.Duration
	HeartbeatPulse time.Duration
	PlaybackTick   time.Duration

	// Notifications.
	NotificationDuration  time.Duration
	NotificationExitDelay time.Duration
	NotificationLimit     int

	// Snapshot publication.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		DataServiceURL:     sharedcfg.EnvOrDefault("DATA_SERVICE_URL", "http://localhost:8000"),
		RouteGeometry:      sharedcfg.EnvOrDefault("ROUTE_GEOMETRY", RouteGeometryStraight),
		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "disaster-snapshots"),
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"DATA_SERVICE_TIMEOUT", "60s", &cfg.DataServiceTimeout},
		{"POLL_INTERVAL", "30s", &cfg.PollInterval},
		{"HEARTBEAT_PULSE", "1s", &cfg.HeartbeatPulse},
		{"PLAYBACK_TICK", "1s", &cfg.PlaybackTick},
		{"NOTIFICATION_DURATION", "5s", &cfg.NotificationDuration},
		{"NOTIFICATION_EXIT_DELAY", "300ms", &cfg.NotificationExitDelay},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dest = v
	}

	if cfg.PlannerCacheSize, err = parseNonNegativeInt("PLANNER_CACHE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.NotificationLimit, err = parseNonNegativeInt("NOTIFICATION_LIMIT", 0); err != nil {
		return nil, err
	}

	if u, err := url.Parse(cfg.DataServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid DATA_SERVICE_URL")
	}
	if cfg.RouteGeometry != RouteGeometryStraight && cfg.RouteGeometry != RouteGeometryPolyline {
		return nil, fmt.Errorf("invalid ROUTE_GEOMETRY %q: want %q or %q",
			cfg.RouteGeometry, RouteGeometryStraight, RouteGeometryPolyline)
	}
	if cfg.HeartbeatPulse >= cfg.PollInterval {
		return nil, errors.New("HEARTBEAT_PULSE must be shorter than POLL_INTERVAL")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSnapshotTopic == "" {
			return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
