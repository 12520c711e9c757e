package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:8000", cfg.DataServiceURL)
	assert.Equal(t, 60*time.Second, cfg.DataServiceTimeout)
	assert.Equal(t, 256, cfg.PlannerCacheSize)
	assert.Equal(t, RouteGeometryStraight, cfg.RouteGeometry)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.HeartbeatPulse)
	assert.Equal(t, time.Second, cfg.PlaybackTick)
	assert.Equal(t, 5*time.Second, cfg.NotificationDuration)
	assert.Equal(t, 300*time.Millisecond, cfg.NotificationExitDelay)
	assert.Equal(t, 0, cfg.NotificationLimit)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "disaster-snapshots", cfg.KafkaSnapshotTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DATA_SERVICE_URL", "https://disaster.example.org")
	t.Setenv("DATA_SERVICE_TIMEOUT", "15s")
	t.Setenv("PLANNER_CACHE_SIZE", "0")
	t.Setenv("ROUTE_GEOMETRY", "polyline")
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("HEARTBEAT_PULSE", "500ms")
	t.Setenv("PLAYBACK_TICK", "250ms")
	t.Setenv("NOTIFICATION_DURATION", "3s")
	t.Setenv("NOTIFICATION_EXIT_DELAY", "100ms")
	t.Setenv("NOTIFICATION_LIMIT", "20")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SNAPSHOT_TOPIC", "custom-snapshots")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://disaster.example.org", cfg.DataServiceURL)
	assert.Equal(t, 15*time.Second, cfg.DataServiceTimeout)
	assert.Equal(t, 0, cfg.PlannerCacheSize)
	assert.Equal(t, RouteGeometryPolyline, cfg.RouteGeometry)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.HeartbeatPulse)
	assert.Equal(t, 250*time.Millisecond, cfg.PlaybackTick)
	assert.Equal(t, 3*time.Second, cfg.NotificationDuration)
	assert.Equal(t, 100*time.Millisecond, cfg.NotificationExitDelay)
	assert.Equal(t, 20, cfg.NotificationLimit)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-snapshots", cfg.KafkaSnapshotTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{
		"DATA_SERVICE_TIMEOUT",
		"POLL_INTERVAL",
		"HEARTBEAT_PULSE",
		"PLAYBACK_TICK",
		"NOTIFICATION_DURATION",
		"NOTIFICATION_EXIT_DELAY",
	} {
		t.Run(key+" malformed", func(t *testing.T) {
			t.Setenv(key, "soon")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
		t.Run(key+" non-positive", func(t *testing.T) {
			t.Setenv(key, "0s")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidInts(t *testing.T) {
	for _, key := range []string{"PLANNER_CACHE_SIZE", "NOTIFICATION_LIMIT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "-1")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidDataServiceURL(t *testing.T) {
	t.Setenv("DATA_SERVICE_URL", "localhost")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_SERVICE_URL")
}

func TestLoad_InvalidRouteGeometry(t *testing.T) {
	t.Setenv("ROUTE_GEOMETRY", "curvy")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROUTE_GEOMETRY")
}

func TestLoad_PulseLongerThanInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "1s")
	t.Setenv("HEARTBEAT_PULSE", "2s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEARTBEAT_PULSE")
}

func TestLoad_KafkaDisabledIgnoresTopic(t *testing.T) {
	t.Setenv("KAFKA_SNAPSHOT_TOPIC", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}
