// Package service 提供跨层共享的领域上下文工具
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyModel    llmCtxKey = "llm_model"
)

const unknownLabel = "unknown"

// WorkflowAgentTurn 主 Agent 单轮对话的工作流名称
const WorkflowAgentTurn = "agent_turn"

func withValue(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueFrom(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknownLabel
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknownLabel
	}
	return strings.TrimSpace(s)
}

// WithWorkflow 标记当前 LLM 调用所属工作流，用于指标标签
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	return withValue(ctx, llmCtxKeyWorkflow, workflow)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return withValue(ctx, llmCtxKeyProvider, provider)
}

func WithModel(ctx context.Context, model string) context.Context {
	return withValue(ctx, llmCtxKeyModel, model)
}

// WithLLMCall 一次写入工作流、提供商和模型
func WithLLMCall(ctx context.Context, workflow, provider, model string) context.Context {
	return WithModel(WithProvider(WithWorkflow(ctx, workflow), provider), model)
}

func WorkflowFromContext(ctx context.Context) string {
	return valueFrom(ctx, llmCtxKeyWorkflow)
}

func ProviderFromContext(ctx context.Context) string {
	return valueFrom(ctx, llmCtxKeyProvider)
}

// ModelFromContext 未标记时返回 unknown，由回调处理器再从 callback 输入中补全
func ModelFromContext(ctx context.Context) string {
	return valueFrom(ctx, llmCtxKeyModel)
}
