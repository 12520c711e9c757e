package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-console/internal/config"
	"github.com/couchcryptid/disaster-console/internal/domain"
)

// snapshotKey keys every snapshot message so a compacted topic keeps only
// the latest snapshot.
const snapshotKey = "snapshot"

// SnapshotWriter publishes merged snapshots to a Kafka topic.
// It implements livesync.SnapshotSink.
type SnapshotWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewSnapshotWriter creates a Kafka producer for the configured snapshot topic.
func NewSnapshotWriter(cfg *config.Config, logger *slog.Logger) *SnapshotWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSnapshotTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &SnapshotWriter{writer: w, logger: logger}
}

// PublishSnapshot serializes and publishes one snapshot.
func (w *SnapshotWriter) PublishSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	msg, err := serializeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	w.logger.Debug("snapshot published",
		"topic", w.writer.Topic,
		"zones", len(snap.Zones),
		"bytes", len(msg.Value),
	)
	return nil
}

func (w *SnapshotWriter) Close() error {
	return w.writer.Close()
}

// serializeSnapshot marshals a Snapshot into a Kafka message.
func serializeSnapshot(snap *domain.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snapshotKey),
		Value: data,
		Time:  snap.LastSuccessfulSync,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("snapshot")},
			{Key: "synced_at", Value: []byte(snap.LastSuccessfulSync.UTC().Format(time.RFC3339))},
		},
	}, nil
}
