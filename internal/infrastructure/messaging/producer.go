package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/pkg/metrics"
	"fincore-agent-api/pkg/tracer"
)

var otelTracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := otelTracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishInteraction 发布一轮对话的 UEBA 审计事件
func (p *Producer) PublishInteraction(ctx context.Context, in *entity.Interaction) error {
	msg, err := NewMessage(in.ID, TypeInteraction, in.RequestID, in)
	if err != nil {
		metrics.InteractionEventsTotal.WithLabelValues("publish", "error").Inc()
		return fmt.Errorf("failed to build interaction message: %w", err)
	}
	if traceID := tracer.TraceID(ctx); traceID != "" {
		msg.SetMetadata("trace_id", traceID)
	}
	msg.SetMetadata("active_agent", in.ActiveAgent)

	if _, err := p.Publish(ctx, StreamUEBAInteractions, msg); err != nil {
		metrics.InteractionEventsTotal.WithLabelValues("publish", "error").Inc()
		return err
	}
	metrics.InteractionEventsTotal.WithLabelValues("publish", "success").Inc()
	return nil
}
