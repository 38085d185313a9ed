// Package voice 提供语音合成客户端（Murf）
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"fincore-agent-api/internal/config"
	"fincore-agent-api/internal/infrastructure/upstream"
	"fincore-agent-api/pkg/logger"
)

const serviceName = "murf"

// MurfClient Murf 流式语音合成客户端
type MurfClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
	voiceID  string
	format   string
}

// NewMurfClient 创建语音合成客户端
func NewMurfClient(cfg *config.VoiceConfig) *MurfClient {
	return &MurfClient{
		client:   upstream.NewHTTPClient(cfg.Timeout),
		endpoint: cfg.Endpoint,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		voiceID:  cfg.VoiceID,
		format:   cfg.Format,
	}
}

type streamRequest struct {
	VoiceID string `json:"voiceId"`
	Text    string `json:"text"`
	Format  string `json:"format"`
}

// Synthesize 合成语音，返回原始音频字节
func (c *MurfClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, upstream.ErrMissingAPIKey
	}

	payload, err := json.Marshal(streamRequest{VoiceID: c.voiceID, Text: text, Format: c.format})
	if err != nil {
		return nil, fmt.Errorf("encode murf request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build murf request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	audio, err := upstream.Do(c.client, serviceName, req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio stream", upstream.ErrMalformedResponse)
	}

	logger.Debug(ctx, "murf audio received", "bytes", len(audio), "voice_id", c.voiceID)
	return audio, nil
}
