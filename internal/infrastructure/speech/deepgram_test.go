package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore-agent-api/internal/config"
	"fincore-agent-api/internal/infrastructure/upstream"
)

func newTestClient(url, key string) *DeepgramClient {
	return NewDeepgramClient(&config.SpeechConfig{Endpoint: url, APIKey: key, Timeout: 5 * time.Second})
}

func TestDeepgramClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Token dg-key", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/webm", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "RIFF-bytes", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"check my loan eligibility","confidence":0.98}]}]}}`)
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL, "dg-key").Transcribe(context.Background(), []byte("RIFF-bytes"), "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, "check my loan eligibility", text)
}

func TestDeepgramClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"err_msg":"Invalid credentials."}`)
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL, "bad").Transcribe(context.Background(), []byte("x"), "")
	assert.Empty(t, text)
	assert.True(t, upstream.IsStatus(err, http.StatusUnauthorized))
	assert.False(t, upstream.IsTransport(err))
}

func TestDeepgramClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":{"channels":[]}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "dg-key").Transcribe(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, upstream.ErrMalformedResponse)
}

func TestDeepgramClient_MissingKey(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:0", "  ").Transcribe(context.Background(), []byte("x"), "")
	assert.ErrorIs(t, err, upstream.ErrMissingAPIKey)
}

func TestDeepgramClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, "dg-key").Transcribe(context.Background(), []byte("x"), "")
	require.Error(t, err)
	assert.True(t, upstream.IsTransport(err))
}

func TestAudioContentType(t *testing.T) {
	assert.Equal(t, "audio/*", audioContentType(""))
	assert.Equal(t, "audio/*", audioContentType("application/octet-stream"))
	assert.Equal(t, "audio/ogg", audioContentType("audio/ogg"))
}
