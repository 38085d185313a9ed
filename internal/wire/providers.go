// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"
	"strings"

	"fincore-agent-api/internal/application/assistant"
	"fincore-agent-api/internal/config"
	"fincore-agent-api/internal/domain/repository"
	"fincore-agent-api/internal/infrastructure/document"
	"fincore-agent-api/internal/infrastructure/messaging"
	"fincore-agent-api/internal/infrastructure/persistence/postgres"
	"fincore-agent-api/internal/infrastructure/persistence/redis"
	"fincore-agent-api/internal/infrastructure/speech"
	"fincore-agent-api/internal/infrastructure/voice"
	"fincore-agent-api/internal/interfaces/http/handler"
	"fincore-agent-api/internal/interfaces/http/middleware"
	"fincore-agent-api/pkg/logger"
	"fincore-agent-api/web"
)

const letterIndexRedis = "redis"

// Worker ueba-worker 运行所需的依赖
type Worker struct {
	Consumer     *messaging.Consumer
	Interactions *postgres.InteractionRepository
}

// ProvideRedisClient 提供 Redis 客户端；未启用时返回 nil，依赖方各自降级
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Info(ctx, "redis disabled, using in-memory letter index without audit events")
		return nil, func() {}, nil
	}
	return ProvideRequiredRedisClient(cfg)
}

// ProvideRequiredRedisClient 提供必需的 Redis 客户端（ueba-worker）
func ProvideRequiredRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideLetterIndex 按配置选择批复函索引
func ProvideLetterIndex(ctx context.Context, cfg *config.Config, client *redis.Client) repository.LetterIndex {
	if strings.EqualFold(cfg.Documents.Index, letterIndexRedis) {
		if client != nil {
			return redis.NewLetterIndex(client, cfg.Documents.IndexTTL)
		}
		logger.Warn(ctx, "redis letter index requested but redis disabled, falling back to memory")
	}
	return document.NewMemoryIndex()
}

// ProvideFileStore 提供批复函文件存储
func ProvideFileStore(cfg *config.Config, index repository.LetterIndex) (*document.FileStore, error) {
	return document.NewFileStore(cfg.Documents.Dir, index, document.NewRenderer())
}

// ProvideDeepgramClient 提供语音转写客户端
func ProvideDeepgramClient(cfg *config.Config) *speech.DeepgramClient {
	return speech.NewDeepgramClient(&cfg.Speech)
}

// ProvideMurfClient 提供语音合成客户端
func ProvideMurfClient(cfg *config.Config) *voice.MurfClient {
	return voice.NewMurfClient(&cfg.Voice)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(cfg *config.Config, client *redis.Client) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(client.Redis(), int64(maxLen))
}

// ProvideInteractionPublisher 审计开启且 Redis 可用时投递交互事件
func ProvideInteractionPublisher(ctx context.Context, cfg *config.Config, client *redis.Client) assistant.InteractionPublisher {
	if !cfg.Features.Audit.Enabled {
		return nil
	}
	if client == nil {
		logger.Warn(ctx, "audit enabled but redis disabled, interaction events dropped")
		return nil
	}
	return ProvideMessagingProducer(cfg, client)
}

// ProvideRateLimiter Redis 不可用时不限流
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideOrchestratorOptions 提供编排开关
func ProvideOrchestratorOptions(cfg *config.Config) assistant.Options {
	return assistant.Options{
		StrictLabels:   cfg.Features.Agents.StrictLabels,
		JSONResponse:   cfg.Features.Agents.JSONResponse,
		MinSpeechChars: cfg.Voice.MinTextLength,
		Provider:       cfg.LLM.DefaultProvider,
	}
}

// ProvidePageHandler 提供内嵌页面处理器
func ProvidePageHandler() (*handler.PageHandler, error) {
	return handler.NewPageHandler(web.Pages())
}

// ProvideDocumentHandler 提供批复函下载处理器
func ProvideDocumentHandler(cfg *config.Config, store *document.FileStore) *handler.DocumentHandler {
	return handler.NewDocumentHandler(store, cfg.Documents.DownloadName)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, store *document.FileStore, client *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, store, client)
}

// ProvideConsumer 提供 UEBA 事件消费者，消费者名取主机名与进程号
func ProvideConsumer(cfg *config.Config, client *redis.Client) *messaging.Consumer {
	stream := cfg.Messaging.RedisStream
	return messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamUEBAInteractions,
		Group:        messaging.ConsumerGroupUEBAWriter,
		ConsumerName: consumerName(),
		BlockTimeout: stream.BlockTimeout,
		RetryLimit:   stream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    stream.RetryBackoff.Initial,
			Max:        stream.RetryBackoff.Max,
			Multiplier: stream.RetryBackoff.Multiplier,
		},
	})
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ueba-worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
