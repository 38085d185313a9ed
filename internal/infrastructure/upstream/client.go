package upstream

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"fincore-agent-api/pkg/metrics"
)

// maxResponseBytes 上游响应体读取上限
const maxResponseBytes = 16 << 20

// NewHTTPClient 创建带超时与追踪传播的 HTTP 客户端
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Do 发送请求并读取完整响应体，非 2xx 返回 *StatusError；同时记录调用指标
func Do(client *http.Client, service string, req *http.Request) ([]byte, error) {
	start := time.Now()
	body, err := do(client, service, req)
	metrics.UpstreamCallDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	metrics.UpstreamCallTotal.WithLabelValues(service, outcome(err)).Inc()
	return body, err
}

func do(client *http.Client, service string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s unreachable: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(service, resp, body)
	}
	return body, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransport(err):
		return "transport_error"
	default:
		return "status_error"
	}
}
