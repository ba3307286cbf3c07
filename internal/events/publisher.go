// Package events connects room sessions to Kafka: feed snapshots and sent
// chat messages go out, ingest events come in.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"playground-transcript-feed/internal/models"
	"playground-transcript-feed/internal/observability/metrics"
)

// Publisher publishes feed and chat events to separate Kafka topics.
type Publisher struct {
	writerFeed *kafka.Writer
	writerChat *kafka.Writer
	principal  string
	topicFeed  string
	topicChat  string
	enabled    bool
	clock      func() time.Time
	metrics    *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	TopicFeed string
	TopicChat string
	Principal string
	Enabled   bool
}

// New creates a Kafka event publisher. A nil, disabled or broker-less
// config yields a log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			clock:   time.Now,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal: cfg.Principal,
			topicFeed: cfg.TopicFeed,
			topicChat: cfg.TopicChat,
			clock:     time.Now,
			metrics:   m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	p := &Publisher{
		writerFeed: newWriter(cfg.Brokers, cfg.TopicFeed, transport),
		writerChat: newWriter(cfg.Brokers, cfg.TopicChat, transport),
		principal:  cfg.Principal,
		topicFeed:  cfg.TopicFeed,
		topicChat:  cfg.TopicChat,
		enabled:    true,
		clock:      time.Now,
		metrics:    m,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicFeed", cfg.TopicFeed).
		Str("topicChat", cfg.TopicChat).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // keyed by room, keeps per-room order
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishFeed publishes a room's merged feed snapshot to the feed topic.
func (p *Publisher) PublishFeed(ctx context.Context, roomID string, feed []models.DisplayMessage) error {
	ev := models.FeedEvent{
		EventType: models.EventFeedUpdated,
		RoomID:    roomID,
		Timestamp: p.clock().UnixMilli(),
		Messages:  feed,
	}
	return p.publish(ctx, p.writerFeed, p.topicFeed, ev.EventType, roomID, ev)
}

// PublishChat publishes a chat message sent from the playground to the
// chat topic.
func (p *Publisher) PublishChat(ctx context.Context, roomID string, msg models.ChatMessage) error {
	ev := models.ChatSentEvent{
		EventType: models.EventChatSent,
		RoomID:    roomID,
		Timestamp: p.clock().UnixMilli(),
		Chat:      msg,
	}
	return p.publish(ctx, p.writerChat, p.topicChat, ev.EventType, roomID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerFeed != nil {
		if e := p.writerFeed.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing feed writer")
			err = e
		}
	}
	if p.writerChat != nil {
		if e := p.writerChat.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing chat writer")
			err = e
		}
	}
	return err
}
