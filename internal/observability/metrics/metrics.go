// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "playground_feed"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Room metrics
	RoomsActive prometheus.Gauge
	RoomsOpened prometheus.Counter
	RoomsClosed prometheus.Counter

	// Merge metrics
	RecomputeTotal    prometheus.Counter
	RecomputeDuration prometheus.Histogram
	FeedSize          prometheus.Histogram

	// Segment metrics
	SegmentsCreated   prometheus.Counter
	SegmentsFinalized prometheus.Counter
	SegmentsIgnored   *prometheus.CounterVec

	// Chat metrics
	ChatMessages *prometheus.CounterVec

	// Subscription metrics
	SubscriptionsActive prometheus.Gauge
	SubscriptionChanges *prometheus.CounterVec

	// Ingest metrics
	IngestEvents *prometheus.CounterVec
	IngestErrors *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Stream metrics
	WebSocketClients prometheus.Gauge
	GRPCCalls        *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RoomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of room sessions currently open",
		}),
		RoomsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_opened_total",
			Help:      "Total number of room sessions opened",
		}),
		RoomsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_closed_total",
			Help:      "Total number of room sessions torn down",
		}),

		RecomputeTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_total",
			Help:      "Total number of feed recomputations",
		}),
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Duration of a feed recomputation in seconds",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		FeedSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_messages",
			Help:      "Number of messages in a recomputed feed",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		SegmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_created_total",
			Help:      "Total number of transcript segments first seen by a merger",
		}),
		SegmentsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_finalized_total",
			Help:      "Total number of transcript segments that turned final",
		}),
		SegmentsIgnored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_ignored_total",
			Help:      "Total number of segment updates ignored by the provider router",
		}, []string{"reason"}),

		ChatMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Total number of chat messages appended to room logs",
		}, []string{"origin"}),

		SubscriptionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Number of live per-participant transcription subscriptions",
		}),
		SubscriptionChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_changes_total",
			Help:      "Total number of subscription changes by kind",
		}, []string{"change"}),

		IngestEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_events_total",
			Help:      "Total number of ingest events accepted",
		}, []string{"source", "event_type"}),
		IngestErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_errors_total",
			Help:      "Total number of ingest events rejected",
		}, []string{"source", "reason"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		WebSocketClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Number of connected feed WebSocket clients",
		}),
		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls by method and code",
		}, []string{"method", "code"}),
	}
}

// RecordRoomOpened records a room session being created.
func (m *Metrics) RecordRoomOpened() {
	m.RoomsOpened.Inc()
	m.RoomsActive.Inc()
}

// RecordRoomClosed records a room session being torn down.
func (m *Metrics) RecordRoomClosed() {
	m.RoomsClosed.Inc()
	m.RoomsActive.Dec()
}

// RecordRecompute records one merge pass.
func (m *Metrics) RecordRecompute(durationSeconds float64, feedSize int) {
	m.RecomputeTotal.Inc()
	m.RecomputeDuration.Observe(durationSeconds)
	m.FeedSize.Observe(float64(feedSize))
}

func (m *Metrics) RecordSegmentCreated() {
	m.SegmentsCreated.Inc()
}

func (m *Metrics) RecordSegmentFinalized() {
	m.SegmentsFinalized.Inc()
}

// RecordSegmentIgnored records a segment update the router refused.
func (m *Metrics) RecordSegmentIgnored(reason string) {
	m.SegmentsIgnored.WithLabelValues(reason).Inc()
}

// RecordChatMessage records a chat message; origin is "remote" or "local".
func (m *Metrics) RecordChatMessage(origin string) {
	m.ChatMessages.WithLabelValues(origin).Inc()
}

// RecordSubscribe records a new transcription subscription.
func (m *Metrics) RecordSubscribe() {
	m.SubscriptionsActive.Inc()
	m.SubscriptionChanges.WithLabelValues("subscribe").Inc()
}

// RecordUnsubscribe records a transcription subscription being cancelled.
func (m *Metrics) RecordUnsubscribe() {
	m.SubscriptionsActive.Dec()
	m.SubscriptionChanges.WithLabelValues("unsubscribe").Inc()
}

// RecordIngest records an accepted ingest event; source is "http" or "kafka".
func (m *Metrics) RecordIngest(source, eventType string) {
	m.IngestEvents.WithLabelValues(source, eventType).Inc()
}

// RecordIngestError records a rejected ingest event.
func (m *Metrics) RecordIngestError(source, reason string) {
	m.IngestErrors.WithLabelValues(source, reason).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

func (m *Metrics) RecordWebSocketConnected() {
	m.WebSocketClients.Inc()
}

func (m *Metrics) RecordWebSocketDisconnected() {
	m.WebSocketClients.Dec()
}

// RecordGRPCCall records a finished gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
