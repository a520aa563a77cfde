// Package kafka streams audit events to a Kafka topic with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "docexchange/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Sink publishes audit events asynchronously. Records are keyed by document
// request id so one request's trail stays ordered within a partition.
type Sink struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

func NewSink(producer Producer, topic string, logger *slog.Logger) *Sink {
	return &Sink{producer: producer, topic: topic, logger: logger}
}

// NewClient builds a producer client for the given seed brokers.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordDeliveryTimeout(30*time.Second),
	)
}

func (s *Sink) Publish(ctx context.Context, event audit.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit event encode failed", "action", event.Action, "error", err)
		return
	}
	record := &kgo.Record{
		Topic:     s.topic,
		Key:       []byte(event.DocumentRequestID),
		Value:     payload,
		Timestamp: event.Timestamp,
		Headers:   []kgo.RecordHeader{{Key: "action", Value: []byte(event.Action)}},
	}
	// The promise runs after the HTTP request may have finished; detach from
	// its cancellation.
	s.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("audit event delivery failed",
				"topic", r.Topic,
				"action", event.Action,
				"error", err,
			)
		}
	})
}
