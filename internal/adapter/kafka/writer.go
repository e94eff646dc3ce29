package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hab-status-etl/internal/config"
	"github.com/couchcryptid/hab-status-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes location statuses to a Kafka topic, one message per status.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured status topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaStatusTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish writes every status in the snapshot in a single WriteMessages call.
// Messages are keyed by location ID so each location stays on one partition.
func (w *Writer) Publish(ctx context.Context, snap domain.Snapshot) error {
	statuses := snap.All()
	if len(statuses) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(statuses))
	for i := range statuses {
		msg, err := serializeToMessage(snap, statuses[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d status messages: %w", len(msgs), err)
	}
	w.logger.Debug("statuses written to kafka", "count", len(msgs), "run_id", snap.RunID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one status into a Kafka message.
func serializeToMessage(snap domain.Snapshot, status domain.LocationStatus) (kafkago.Message, error) {
	data, err := json.Marshal(status)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize status %s: %w", status.LocationID, err)
	}
	return kafkago.Message{
		Key:   []byte(status.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "location_kind", Value: []byte(status.Kind)},
			{Key: "tier", Value: []byte(status.Tier.String())},
			{Key: "run_id", Value: []byte(snap.RunID)},
			{Key: "evaluated_at", Value: []byte(snap.EvaluatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
