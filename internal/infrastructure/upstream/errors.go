// Package upstream 提供三方 HTTP 服务共用的客户端与错误类型
package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingAPIKey 未配置密钥，请求未发出
	ErrMissingAPIKey = errors.New("upstream api key not configured")
	// ErrMalformedResponse 响应体无法解析
	ErrMalformedResponse = errors.New("upstream response malformed")
)

// StatusError 上游返回非 2xx
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsStatus 判断错误是否为指定状态码的 StatusError
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsTransport 判断错误是否发生在拿到响应之前
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	return !errors.Is(err, ErrMalformedResponse) && !errors.As(err, &se)
}

func newStatusError(service string, resp *http.Response, body []byte) *StatusError {
	const maxBody = 256
	s := string(body)
	if len(s) > maxBody {
		s = s[:maxBody]
	}
	return &StatusError{Service: service, StatusCode: resp.StatusCode, Body: s}
}
