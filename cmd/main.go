package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	grpcapi "playground-transcript-feed/internal/api/grpc"
	"playground-transcript-feed/internal/app"
	"playground-transcript-feed/internal/config"
	httpapi "playground-transcript-feed/internal/http"
	"playground-transcript-feed/internal/observability"
	"playground-transcript-feed/internal/observability/metrics"
)

func main() {
	cfg := config.Load()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	obsServer := observability.NewServer(":"+cfg.Service.MetricsPort, application.Ready)
	obsServer.Start()

	grpcServer := grpcapi.NewServer(":"+cfg.Service.GRPCPort, metrics.DefaultMetrics)
	go func() {
		if err := grpcServer.Serve(); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	grpcServer.SetServing(true)

	log.Info().
		Str("principal", cfg.Service.Principal).
		Str("httpPort", cfg.Service.HTTPPort).
		Str("grpcPort", cfg.Service.GRPCPort).
		Str("metricsPort", cfg.Service.MetricsPort).
		Msg("Transcript feed service started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	application.Shutdown()
	grpcServer.Shutdown(ctx)
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown error")
	}
}
