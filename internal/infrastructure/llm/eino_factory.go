// Package llm 提供 Eino ChatModel 的构建与缓存
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"fincore-agent-api/internal/config"
)

const (
	providerTypeOpenAI = "openai"
	providerTypeArk    = "ark"

	defaultTimeout = 2 * time.Minute

	// 上游调用只尝试一次，失败由编排层降级
	defaultRetryTimes = 0
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := newChatModel(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// Describe 返回提供商与模型名称，用于指标与日志标签
func (f *EinoFactory) Describe(name string) (provider, modelName string) {
	if name == "" {
		name = f.config.DefaultProvider
	}
	return name, f.config.Providers[name].Model
}

// newChatModel 按适配器类型构建模型；密钥缺失时返回错误，由调用方降级
func newChatModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, fmt.Errorf("model not configured")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", providerTypeOpenAI:
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("openai-compatible chat model missing api key")
		}
		return openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:      apiKey,
			BaseURL:     strings.TrimSpace(cfg.BaseURL),
			Model:       modelName,
			MaxTokens:   positiveInt(cfg.MaxTokens),
			Temperature: ptrFloat32(float32(cfg.Temperature)),
			Timeout:     timeout,
		})

	case providerTypeArk:
		arkCfg, err := newArkConfig(cfg, modelName, timeout)
		if err != nil {
			return nil, err
		}
		return arkModel.NewChatModel(ctx, arkCfg)

	default:
		return nil, fmt.Errorf("unknown chat model provider type: %s", cfg.Type)
	}
}

// newArkConfig 构建 ark 模型配置，关闭客户端重试
func newArkConfig(cfg config.ProviderConfig, modelName string, timeout time.Duration) (*arkModel.ChatModelConfig, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	accessKey := strings.TrimSpace(cfg.AccessKey)
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if apiKey == "" && (accessKey == "" || secretKey == "") {
		return nil, fmt.Errorf("ark chat model missing apiKey or accessKey/secretKey")
	}
	retryTimes := defaultRetryTimes
	return &arkModel.ChatModelConfig{
		APIKey:      apiKey,
		AccessKey:   accessKey,
		SecretKey:   secretKey,
		Model:       modelName,
		BaseURL:     strings.TrimSpace(cfg.BaseURL),
		Region:      strings.TrimSpace(cfg.Region),
		MaxTokens:   positiveInt(cfg.MaxTokens),
		Temperature: ptrFloat32(float32(cfg.Temperature)),
		Timeout:     &timeout,
		RetryTimes:  &retryTimes,
	}, nil
}

func positiveInt(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func ptrFloat32(f float32) *float32 {
	return &f
}
