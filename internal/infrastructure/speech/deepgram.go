// Package speech 提供语音转写客户端（Deepgram）
package speech

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

const (
	serviceName        = "deepgram"
	defaultContentType = "audio/*"
)

// DeepgramClient Deepgram 预录音频转写客户端
type DeepgramClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewDeepgramClient 创建转写客户端，密钥为空时不报错，调用时返回 ErrMissingAPIKey
func NewDeepgramClient(cfg *config.SpeechConfig) *DeepgramClient {
	return &DeepgramClient{
		client:   upstream.NewHTTPClient(cfg.Timeout),
		endpoint: cfg.Endpoint,
		apiKey:   strings.TrimSpace(cfg.APIKey),
	}
}

type listenResponse struct {
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe 上传原始音频并返回首个声道的首选转写文本
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.apiKey == "" {
		return "", upstream.ErrMissingAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("build deepgram request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", audioContentType(mimeType))

	body, err := upstream.Do(c.client, serviceName, req)
	if err != nil {
		return "", err
	}

	transcript, err := parseTranscript(body)
	if err != nil {
		return "", err
	}
	logger.Debug(ctx, "deepgram transcription received", "chars", len([]rune(transcript)))
	return transcript, nil
}

// parseTranscript 提取 results.channels[0].alternatives[0].transcript
func parseTranscript(body []byte) (string, error) {
	var resp listenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	if resp.Results == nil ||
		len(resp.Results.Channels) == 0 ||
		len(resp.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("%w: transcript path missing", upstream.ErrMalformedResponse)
	}
	return resp.Results.Channels[0].Alternatives[0].Transcript, nil
}

func audioContentType(mimeType string) string {
	mt := strings.TrimSpace(mimeType)
	if strings.HasPrefix(mt, "audio/") {
		return mt
	}
	return defaultContentType
}
