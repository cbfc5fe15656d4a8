// Package kafka publishes significant-event notifications.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Notifier produces significant processed events to a notification
// topic for downstream alerting.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the configured notification
// topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger}
}

// NotifySignificant publishes one significant processed event.
func (n *Notifier) NotifySignificant(ctx context.Context, event domain.ProcessedEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, msg)
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a ProcessedEvent into a Kafka message
// keyed by the earthquake's global id.
func serializeToMessage(event domain.ProcessedEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize processed event: %w", err)
	}

	alert := ""
	if event.AlertLevel != nil {
		alert = *event.AlertLevel
	}

	return kafkago.Message{
		Key:   []byte(event.GlobalID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_level", Value: []byte(alert)},
			{Key: "processed_at", Value: []byte(event.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
