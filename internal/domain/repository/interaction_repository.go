package repository

import (
	"context"
	"time"

	"fincore-agent-api/internal/domain/entity"
)

// InteractionRepository UEBA 交互事件存储
type InteractionRepository interface {
	// Create 写入事件，ID 已存在时忽略
	Create(ctx context.Context, interaction *entity.Interaction) error
	// ListSince 按发生时间倒序列出指定时间之后的事件
	ListSince(ctx context.Context, since time.Time, limit int) ([]*entity.Interaction, error)
}
