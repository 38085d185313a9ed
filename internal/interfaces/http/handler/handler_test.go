package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore-agent-api/internal/application/assistant"
	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/infrastructure/document"
	"fincore-agent-api/internal/interfaces/http/dto"
	wfmodel "fincore-agent-api/internal/workflow/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubTranscriber struct {
	called bool
	text   string
	err    error
}

func (s *stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	s.called = true
	return s.text, s.err
}

type stubGenerator struct {
	reply string
	last  *wfmodel.AgentTurnInput
}

func (s *stubGenerator) Invoke(_ context.Context, in *wfmodel.AgentTurnInput) (string, error) {
	s.last = in
	return s.reply, nil
}

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return []byte("ID3-audio"), nil
}

type stubBureau struct{}

func (stubBureau) Lookup(context.Context) entity.CreditProfile {
	return entity.CreditProfile{Score: 790, Limit: 500000, Name: "Anvay Ghare"}
}

type testServer struct {
	engine      *gin.Engine
	transcriber *stubTranscriber
	generator   *stubGenerator
	store       *document.FileStore
}

func newTestServer(t *testing.T, reply string) *testServer {
	t.Helper()
	store, err := document.NewFileStore(filepath.Join(t.TempDir(), "letters"), document.NewMemoryIndex(), document.NewRenderer())
	require.NoError(t, err)

	ts := &testServer{
		transcriber: &stubTranscriber{},
		generator:   &stubGenerator{reply: reply},
		store:       store,
	}
	orch := assistant.NewOrchestrator(ts.transcriber, ts.generator, stubSynthesizer{}, stubBureau{}, store, nil, assistant.Options{})

	pages, err := NewPageHandler(fstest.MapFS{
		"homepage.html": {Data: []byte("<html>home</html>")},
		"login.html":    {Data: []byte("<html>login</html>")},
	})
	require.NoError(t, err)

	engine := gin.New()
	assistantHandler := NewAssistantHandler(orch)
	documentHandler := NewDocumentHandler(store, "Sanction_Letter.pdf")
	healthHandler := NewHealthHandler("test", store, nil)

	engine.POST("/process_audio", assistantHandler.ProcessAudio)
	engine.GET("/download_pdf", documentHandler.Download)
	engine.GET("/", pages.Home)
	engine.GET("/login.html", pages.Login)
	engine.GET("/ready", healthHandler.Ready)
	ts.engine = engine
	return ts
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func multipartRequest(t *testing.T, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/process_audio", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeProcessResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestProcessAudio_EmptyForm(t *testing.T) {
	ts := newTestServer(t, "unused")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, multipartRequest(t, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeProcessResponse(t, rec)
	assert.Equal(t, assistant.ListeningMessage, body["ai_text"])
	assert.Nil(t, body["pdf_url"])
	assert.Equal(t, "agent-master", body["active_agent"])
	for _, key := range []string{"user_text", "ai_text", "audio_base64", "active_agent", "ueba_log", "pdf_url"} {
		assert.Contains(t, body, key)
	}
}

func TestProcessAudio_NonMultipartBodyIsEmptyInput(t *testing.T) {
	ts := newTestServer(t, "unused")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/process_audio", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, assistant.ListeningMessage, decodeProcessResponse(t, rec)["ai_text"])
}

func TestProcessAudio_TextInputWinsOverAudio(t *testing.T) {
	ts := newTestServer(t, `{"text": "We offer personal loans.", "active_agent": "agent-sales", "ueba_log": "UEBA: ok"}`)
	rec := httptest.NewRecorder()
	req := multipartRequest(t,
		map[string]string{"text_input": "loan options?"},
		formFile{field: "audio_data", name: "speech.webm", contentType: "audio/webm", data: []byte("audio")},
	)
	ts.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeProcessResponse(t, rec)
	assert.Equal(t, "loan options?", body["user_text"])
	assert.Equal(t, "We offer personal loans.", body["ai_text"])
	assert.Equal(t, "agent-sales", body["active_agent"])
	assert.NotNil(t, body["audio_base64"])
	assert.False(t, ts.transcriber.called)
}

func TestProcessAudio_AudioAndSniffedImage(t *testing.T) {
	ts := newTestServer(t, `{"text": "ID Verified.", "active_agent": "agent-verify", "ueba_log": "UEBA: id"}`)
	ts.transcriber.text = "here is my id"
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

	rec := httptest.NewRecorder()
	req := multipartRequest(t, nil,
		formFile{field: "audio_data", name: "speech.webm", contentType: "audio/webm", data: []byte("audio")},
		formFile{field: "image_data", name: "id.png", contentType: "application/octet-stream", data: png},
	)
	ts.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeProcessResponse(t, rec)
	assert.Equal(t, "here is my id", body["user_text"])
	assert.True(t, ts.transcriber.called)
	require.NotNil(t, ts.generator.last)
	assert.Equal(t, "image/png", ts.generator.last.ImageMIME)
}

func TestProcessAudio_TranscriptionFailureStillOK(t *testing.T) {
	ts := newTestServer(t, "unused")
	ts.transcriber.err = errors.New("connection reset")

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, multipartRequest(t, nil,
		formFile{field: "audio_data", name: "speech.webm", contentType: "audio/webm", data: []byte("audio")},
	))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeProcessResponse(t, rec)
	assert.Equal(t, "", body["user_text"])
	assert.Equal(t, assistant.ListeningMessage, body["ai_text"])
}

func TestProcessAudio_ZeroByteAudioIsAbsent(t *testing.T) {
	ts := newTestServer(t, "unused")

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, multipartRequest(t, nil,
		formFile{field: "audio_data", name: "speech.webm", contentType: "audio/webm", data: nil},
	))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, assistant.ListeningMessage, decodeProcessResponse(t, rec)["ai_text"])
	assert.False(t, ts.transcriber.called)
}

func TestDownload_NoLetterReturns404(t *testing.T) {
	ts := newTestServer(t, "unused")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_pdf", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "3001", body.Error.ErrorCode)
}

func TestDownload_AfterDocAgentReply(t *testing.T) {
	ts := newTestServer(t, "```json\n{\"text\": \"Your sanction letter is ready.\", \"active_agent\": \"agent-doc\", \"ueba_log\": \"UEBA: doc\"}\n```")

	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, multipartRequest(t, map[string]string{"text_input": "sanction letter please"}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeProcessResponse(t, rec)
	pdfURL, ok := body["pdf_url"].(string)
	require.True(t, ok)

	for _, target := range []string{pdfURL, "/download_pdf"} {
		rec = httptest.NewRecorder()
		ts.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Greater(t, rec.Body.Len(), 0)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "Sanction_Letter.pdf")
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	}
}

func TestDownload_UnknownID(t *testing.T) {
	ts := newTestServer(t, "unused")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_pdf?id=missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPages(t *testing.T) {
	ts := newTestServer(t, "unused")

	for path, want := range map[string]string{"/": "home", "/login.html": "login"} {
		rec := httptest.NewRecorder()
		ts.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), want)
	}
}

func TestNewPageHandler_MissingPage(t *testing.T) {
	_, err := NewPageHandler(fstest.MapFS{"homepage.html": {Data: []byte("x")}})
	assert.Error(t, err)
}

func TestReady_DocumentsOnly(t *testing.T) {
	ts := newTestServer(t, "unused")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"documents"`)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "audio/webm", detectMIME("audio/webm;codecs=opus", []byte("x")))
	assert.Equal(t, "image/png", detectMIME("", []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, "text/plain; charset=utf-8", detectMIME("application/octet-stream", []byte("hello")))
}
