// Package kafka implements the eventstream Publisher over a Kafka topic.
// Events are keyed by person id so per-person ordering is preserved within
// a partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/eventstream"
)

// DefaultTopic is the topic used when none is configured.
const DefaultTopic = "solace.events"

// Config holds Kafka publisher configuration.
type Config struct {
	// Brokers is the bootstrap broker list.
	Brokers []string

	// Topic receives all lifecycle events. Defaults to DefaultTopic.
	Topic string

	// BatchTimeout bounds how long writes linger before flushing.
	// Defaults to 100ms; lifecycle events are low-volume so latency
	// matters more than batching.
	BatchTimeout time.Duration
}

// Publisher writes lifecycle events to Kafka.
type Publisher struct {
	writer *segmentio.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 100 * time.Millisecond
	}

	writer := &segmentio.Writer{
		Addr:         segmentio.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &segmentio.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: segmentio.RequireOne,
	}

	logger.Info("kafka publisher ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic))

	return &Publisher{writer: writer, logger: logger}, nil
}

// PublishPerson writes one event, keyed by person id.
func (p *Publisher) PublishPerson(ctx context.Context, event *eventstream.PersonEvent) error {
	if event == nil {
		return eventstream.ErrNilPersonEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, segmentio.Message{
		Key:   []byte(event.PersonID),
		Value: payload,
		Time:  event.EmittedAt,
	})
	if err != nil {
		return fmt.Errorf("writing event to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
