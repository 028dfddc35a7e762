package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/profile-tile-etl/internal/config"
	"github.com/couchcryptid/profile-tile-etl/internal/domain"
)

// Notifier publishes one message per written tile to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured notification topic.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &Notifier{writer: w, logger: logger}
}

// TileWritten publishes n keyed by "<chunk>/<tile>", so every notification
// for one tile lands on the same partition.
func (n *Notifier) TileWritten(ctx context.Context, tw domain.TileWritten) error {
	msg, err := serializeToMessage(tw)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish tile %s/%s: %w", tw.Chunk, tw.Tile, err)
	}
	n.logger.Debug("tile notification sent", "chunk", tw.Chunk, "tile", tw.Tile)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a TileWritten notification into a Kafka message.
func serializeToMessage(tw domain.TileWritten) (kafkago.Message, error) {
	data, err := json.Marshal(tw)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize tile notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(tw.Chunk + "/" + tw.Tile),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(tw.RunID)},
			{Key: "written_at", Value: []byte(tw.WrittenAt.Format(time.RFC3339))},
		},
	}, nil
}
