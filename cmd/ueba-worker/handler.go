package main

import (
	"context"
	"fmt"
	"time"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/domain/repository"
	"fincore-agent-api/internal/infrastructure/messaging"
	"fincore-agent-api/pkg/logger"
	"fincore-agent-api/pkg/metrics"
)

// persistInteraction 将交互事件写入审计库；返回错误时消息保持 pending 等待重投
func persistInteraction(store repository.InteractionRepository) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var in entity.Interaction
		if err := msg.UnmarshalPayload(&in); err != nil {
			metrics.InteractionEventsTotal.WithLabelValues("persist", "error").Inc()
			return fmt.Errorf("decode interaction: %w", err)
		}
		if err := store.Create(ctx, &in); err != nil {
			metrics.InteractionEventsTotal.WithLabelValues("persist", "error").Inc()
			return err
		}
		metrics.InteractionEventsTotal.WithLabelValues("persist", "success").Inc()
		logger.Debug(ctx, "interaction persisted", "interaction_id", in.ID, "agent", in.ActiveAgent)
		return nil
	}
}

// reportRecent 启动时统计最近窗口内已落库的事件数
func reportRecent(ctx context.Context, store repository.InteractionRepository, window time.Duration, limit int) (int, error) {
	recent, err := store.ListSince(ctx, time.Now().Add(-window), limit)
	if err != nil {
		return 0, err
	}
	fields := []any{"window", window.String(), "count", len(recent)}
	if len(recent) > 0 {
		fields = append(fields, "latest_at", recent[0].OccurredAt)
	}
	logger.Info(ctx, "recent ueba interactions", fields...)
	return len(recent), nil
}
