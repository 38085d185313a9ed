//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"fincore-agent-api/internal/application/assistant"
	"fincore-agent-api/internal/config"
	"fincore-agent-api/internal/infrastructure/bureau"
	"fincore-agent-api/internal/infrastructure/document"
	"fincore-agent-api/internal/infrastructure/llm"
	"fincore-agent-api/internal/infrastructure/persistence/postgres"
	"fincore-agent-api/internal/infrastructure/speech"
	"fincore-agent-api/internal/infrastructure/voice"
	"fincore-agent-api/internal/interfaces/http/handler"
	"fincore-agent-api/internal/interfaces/http/router"
	"fincore-agent-api/internal/workflow/chain"
	workflowport "fincore-agent-api/internal/workflow/port"
)

// InitializeApp 初始化 API 服务（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StorageSet,
		AssistantSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 ueba-worker
func InitializeWorker(cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		ProvideRequiredRedisClient,
		ProvidePostgresClient,
		postgres.NewInteractionRepository,
		ProvideConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// StorageSet Redis 与批复函存储
var StorageSet = wire.NewSet(
	ProvideRedisClient,
	ProvideLetterIndex,
	ProvideFileStore,
	ProvideRateLimiter,
	ProvideInteractionPublisher,
)

// AssistantSet 对话编排及其上游客户端
var AssistantSet = wire.NewSet(
	ProvideDeepgramClient,
	ProvideMurfClient,
	llm.NewEinoFactory,
	chain.NewAgentTurnChain,
	bureau.NewMockBureau,
	ProvideOrchestratorOptions,
	assistant.NewOrchestrator,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	wire.Bind(new(assistant.Transcriber), new(*speech.DeepgramClient)),
	wire.Bind(new(assistant.Generator), new(*chain.AgentTurnChain)),
	wire.Bind(new(assistant.Synthesizer), new(*voice.MurfClient)),
	wire.Bind(new(assistant.CreditBureau), new(*bureau.MockBureau)),
	wire.Bind(new(assistant.LetterIssuer), new(*document.FileStore)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewAssistantHandler,
	ProvideDocumentHandler,
	ProvidePageHandler,
	ProvideHealthHandler,
	wire.Bind(new(handler.LetterResolver), new(*document.FileStore)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
