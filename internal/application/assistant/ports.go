package assistant

import (
	"context"

	"fincore-agent-api/internal/domain/entity"
	wfmodel "fincore-agent-api/internal/workflow/model"
)

// Transcriber 语音转写（port）
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Generator 主 Agent 单轮生成，返回模型原始文本
type Generator interface {
	Invoke(ctx context.Context, in *wfmodel.AgentTurnInput) (string, error)
}

// Synthesizer 语音合成
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// CreditBureau 征信数据来源
type CreditBureau interface {
	Lookup(ctx context.Context) entity.CreditProfile
}

// LetterIssuer 生成并保存批复函
type LetterIssuer interface {
	Issue(ctx context.Context, profile entity.CreditProfile) (*entity.SanctionLetter, error)
}

// InteractionPublisher 投递 UEBA 审计事件
type InteractionPublisher interface {
	PublishInteraction(ctx context.Context, in *entity.Interaction) error
}
