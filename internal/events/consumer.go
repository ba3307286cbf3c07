package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/observability/metrics"
)

// IngestSource is the metrics source label for Kafka ingest.
const IngestSource = "kafka"

// Dispatcher applies an ingest event.
type Dispatcher interface {
	Handle(ctx context.Context, source string, ev models.IngestEvent) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads ingest events from Kafka and dispatches them.
type Consumer struct {
	reader     messageReader
	dispatcher Dispatcher
	topic      string
	backoff    time.Duration
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewConsumer creates a consumer group reader on the ingest topic.
func NewConsumer(cfg ConsumerConfig, dispatcher Dispatcher) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return newConsumer(reader, dispatcher, cfg.Topic)
}

func newConsumer(reader messageReader, dispatcher Dispatcher, topic string) *Consumer {
	return &Consumer{
		reader:     reader,
		dispatcher: dispatcher,
		topic:      topic,
		backoff:    time.Second,
		metrics:    metrics.DefaultMetrics,
		log:        logging.WithComponent("kafka-consumer"),
	}
}

// Run consumes until ctx ends. Malformed or rejected events are logged and
// skipped; read errors back off and retry.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Str("topic", c.topic).Msg("Consuming ingest events")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Error().Err(err).Str("topic", c.topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var ev models.IngestEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.metrics.RecordIngestError(IngestSource, "decode")
		c.log.Warn().
			Err(err).
			Int64("offset", msg.Offset).
			Int("partition", msg.Partition).
			Msg("Skipping malformed ingest event")
		return
	}

	if err := c.dispatcher.Handle(ctx, IngestSource, ev); err != nil {
		c.log.Warn().
			Err(err).
			Str("roomId", ev.RoomID).
			Str("eventType", ev.EventType).
			Int64("offset", msg.Offset).
			Msg("Ingest event rejected")
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
