// Package main FinCore 对话 API 服务入口
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fincore-agent-api/internal/config"
	einoobs "fincore-agent-api/internal/observability/eino"
	"fincore-agent-api/internal/wire"
	"fincore-agent-api/pkg/logger"
	"fincore-agent-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在），三方密钥通常放在这里
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if Version != "dev" {
		cfg.App.Version = Version
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

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting fincore api",
		"version", cfg.App.Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)
	warnMissingSecrets(ctx, cfg)

	tracing := cfg.Observability.Tracing
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    cfg.App.Name,
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
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Error(ctx, "failed to shutdown tracer", err)
		}
	}()

	// 初始化 Eino 全局 callbacks（指标/追踪/日志）
	einoobs.Init()

	app, cleanupApp, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer cleanupApp()

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error(ctx, "http server error", err)
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server forced to shutdown", err)
	}

	log.Info("server exited")
}

// warnMissingSecrets 密钥缺失不阻止启动，对应调用在请求时降级
func warnMissingSecrets(ctx context.Context, cfg *config.Config) {
	if cfg.Speech.APIKey == "" {
		logger.Warn(ctx, "DEEPGRAM_API_KEY not set, transcription will be skipped")
	}
	if cfg.Voice.APIKey == "" {
		logger.Warn(ctx, "MURF_API_KEY not set, speech synthesis will be skipped")
	}
	if p, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok || (p.APIKey == "" && p.AccessKey == "") {
		logger.Warn(ctx, "default llm provider has no credentials, generation will fail",
			"provider", cfg.LLM.DefaultProvider,
		)
	}
}
