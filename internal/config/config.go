package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Configuration holds all service configuration.
type Configuration struct {
	Service       ServiceConfig
	Kafka         KafkaConfig
	Merger        MergerConfig
	Limits        LimitsConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	GRPCPort    string
	MetricsPort string
	// ShutdownTimeout bounds graceful shutdown of all listeners.
	ShutdownTimeout time.Duration
}

// KafkaConfig holds Kafka publisher and consumer settings.
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicFeed   string
	TopicChat   string
	TopicIngest string
	GroupID     string
	Principal   string
}

// MergerConfig holds transcript merge policy settings.
type MergerConfig struct {
	Scope             string
	SelfLabel         string
	AgentLabel        string
	UnknownLabel      string
	DropUnmatchedChat bool
}

// LimitsConfig holds per-room resource bounds.
type LimitsConfig struct {
	MaxSegments int // Segments kept per participant track
	MaxPartials int // Partial revisions accepted per segment
	OutboxSize  int // Feed snapshots queued for Kafka per room
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // "json" or "console"
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
func Load() *Configuration {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-transcript-feed")

	return &Configuration{
		Service: ServiceConfig{
			Principal:       principal,
			HTTPPort:        envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:        envOrDefault("GRPC_PORT", "50051"),
			MetricsPort:     envOrDefault("METRICS_PORT", "9090"),
			ShutdownTimeout: envOrDefaultDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:     envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:     envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicFeed:   envOrDefault("KAFKA_TOPIC_FEED", "playground.transcript.feed"),
			TopicChat:   envOrDefault("KAFKA_TOPIC_CHAT", "playground.chat.sent"),
			TopicIngest: envOrDefault("KAFKA_TOPIC_INGEST", "playground.ingest"),
			GroupID:     envOrDefault("KAFKA_GROUP_ID", "transcript-feed"),
			Principal:   envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Merger: MergerConfig{
			Scope:             envOrDefault("MERGER_SCOPE", "all"),
			SelfLabel:         envOrDefault("MERGER_SELF_LABEL", "You"),
			AgentLabel:        envOrDefault("MERGER_AGENT_LABEL", "Agent"),
			UnknownLabel:      envOrDefault("MERGER_UNKNOWN_LABEL", "Unknown"),
			DropUnmatchedChat: envOrDefaultBool("MERGER_DROP_UNMATCHED_CHAT", false),
		},
		Limits: LimitsConfig{
			MaxSegments: envOrDefaultInt("LIMITS_MAX_SEGMENTS", 100),
			MaxPartials: envOrDefaultInt("LIMITS_MAX_PARTIALS", 500),
			OutboxSize:  envOrDefaultInt("LIMITS_OUTBOX_SIZE", 64),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty items.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
