// Package main UEBA 审计事件落库入口（ueba-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fincore-agent-api/internal/config"
	"fincore-agent-api/internal/infrastructure/messaging"
	"fincore-agent-api/internal/wire"
	"fincore-agent-api/pkg/logger"
	"fincore-agent-api/pkg/tracer"
)

const (
	dlqAlertThreshold = 100

	recentWindow = 24 * time.Hour
	recentLimit  = 500
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging := cfg.Observability.Logging
	logger.Init(logger.Options{
		Level:      logging.Level,
		Format:     logging.Format,
		Output:     logging.Output,
		FilePath:   logging.FilePath,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		MaxAgeDays: logging.MaxAgeDays,
		Compress:   logging.Compress,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracing := cfg.Observability.Tracing
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    "ueba-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Env,
		Exporter:       tracing.Exporter,
		Endpoint:       tracing.Endpoint,
		Insecure:       tracing.Insecure,
		SampleRate:     tracing.SampleRate,
		Enabled:        tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	worker, cleanup, err := wire.InitializeWorker(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	if err := worker.Interactions.EnsureSchema(ctx); err != nil {
		logger.Fatal(ctx, "failed to ensure ueba schema", err)
	}

	if _, err := reportRecent(ctx, worker.Interactions, recentWindow, recentLimit); err != nil {
		logger.Warn(ctx, "failed to list recent interactions", "error", err.Error())
	}

	worker.Consumer.RegisterHandler(messaging.TypeInteraction, persistInteraction(worker.Interactions))

	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorDLQ(ctx, dlqAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("ueba-worker started", "stream", messaging.StreamUEBAInteractions)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("ueba-worker shutting down")
	worker.Consumer.Stop()
	cancel()
}
