package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"playground-transcript-feed/internal/config"
	"playground-transcript-feed/internal/events"
	"playground-transcript-feed/internal/observability/logging"
	"playground-transcript-feed/internal/schema"
	"playground-transcript-feed/internal/service/ingest"
	"playground-transcript-feed/internal/service/merger"
	"playground-transcript-feed/internal/service/session"
	"playground-transcript-feed/internal/service/transcription"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Publisher   *events.Publisher
	Transcripts *transcription.Router
	Rooms       *session.Registry
	Ingest      *ingest.Handler

	consumer *events.Consumer
	ready    atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) (*Application, error) {
	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	scope, err := merger.ParseScope(cfg.Merger.Scope)
	if err != nil {
		return nil, fmt.Errorf("merger config: %w", err)
	}

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.Publisher = events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		TopicFeed: cfg.Kafka.TopicFeed,
		TopicChat: cfg.Kafka.TopicChat,
		Principal: cfg.Kafka.Principal,
	})

	a.Transcripts = transcription.NewRouter(transcription.Limits{
		MaxSegments: cfg.Limits.MaxSegments,
		MaxPartials: cfg.Limits.MaxPartials,
	})

	a.Rooms = session.NewRegistry(a.ctx, a.Transcripts, a.Publisher, session.Config{
		Policy: merger.Policy{
			Scope:             scope,
			SelfLabel:         cfg.Merger.SelfLabel,
			AgentLabel:        cfg.Merger.AgentLabel,
			UnknownLabel:      cfg.Merger.UnknownLabel,
			DropUnmatchedChat: cfg.Merger.DropUnmatchedChat,
		},
		OutboxSize: cfg.Limits.OutboxSize,
	})

	a.Ingest = ingest.NewHandler(a.Rooms, a.Transcripts, schema.New())

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		a.consumer = events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.TopicIngest,
			GroupID: cfg.Kafka.GroupID,
		}, a.Ingest)
	}

	a.Logger.Info().
		Str("scope", string(scope)).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Transcript feed application created")
	return a, nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()

	if a.consumer != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.consumer.Run(a.ctx); err != nil {
				a.Logger.Error().Err(err).Msg("Ingest consumer stopped")
			}
		}()
	}

	a.ready.Store(true)
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Transcript feed service starting")
	return nil
}

// Ready reports whether the application is serving traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown stops every room, the ingest consumer and the publisher.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().Msg("Transcript feed service shutting down")

	a.cancel()
	a.Rooms.Close()
	a.wg.Wait()

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Error closing ingest consumer")
		}
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Error closing publisher")
	}
}
