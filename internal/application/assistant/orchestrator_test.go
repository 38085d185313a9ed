package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/infrastructure/document"
	"fincore-agent-api/internal/infrastructure/upstream"
	wfmodel "fincore-agent-api/internal/workflow/model"
)

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	args := m.Called(ctx, audio, mimeType)
	return args.String(0), args.Error(1)
}

type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishInteraction(ctx context.Context, in *entity.Interaction) error {
	return m.Called(ctx, in).Error(0)
}

type fakeGenerator struct {
	reply string
	err   error
	calls []*wfmodel.AgentTurnInput
}

func (g *fakeGenerator) Invoke(_ context.Context, in *wfmodel.AgentTurnInput) (string, error) {
	g.calls = append(g.calls, in)
	return g.reply, g.err
}

type fixedBureau struct{}

func (fixedBureau) Lookup(context.Context) entity.CreditProfile {
	return entity.CreditProfile{Score: 777, Limit: 500000, Name: "Anvay Ghare"}
}

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, entity.CreditProfile) (*entity.SanctionLetter, error) {
	return nil, errors.New("disk full")
}

type orchestratorFixture struct {
	transcriber *MockTranscriber
	synthesizer *MockSynthesizer
	generator   *fakeGenerator
	letters     *document.FileStore
	orch        *Orchestrator
}

func newFixture(t *testing.T, reply string, opts Options) *orchestratorFixture {
	t.Helper()
	store, err := document.NewFileStore(filepath.Join(t.TempDir(), "letters"), document.NewMemoryIndex(), document.NewRenderer())
	require.NoError(t, err)

	f := &orchestratorFixture{
		transcriber: new(MockTranscriber),
		synthesizer: new(MockSynthesizer),
		generator:   &fakeGenerator{reply: reply},
		letters:     store,
	}
	f.orch = NewOrchestrator(f.transcriber, f.generator, f.synthesizer, fixedBureau{}, store, nil, opts)
	return f
}

func structuredReply(text, agent, ueba string) string {
	return fmt.Sprintf("```json\n{\"text\": %q, \"active_agent\": %q, \"ueba_log\": %q}\n```", text, agent, ueba)
}

func TestProcess_NoInputReturnsListeningMessage(t *testing.T) {
	f := newFixture(t, "unused", Options{})
	f.synthesizer.On("Synthesize", mock.Anything, ListeningMessage).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{})

	assert.Equal(t, ListeningMessage, res.AIText)
	assert.Nil(t, res.PDFURL)
	assert.Empty(t, res.UserText)
	assert.Empty(t, f.generator.calls)
	assert.Equal(t, entity.AgentMaster, res.ActiveAgent)
	assert.Equal(t, entity.DefaultUEBALog, res.UEBALog)
	assert.Equal(t, entity.CallSkipped, res.Calls.Get(entity.IntegrationGeneration))
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_TextInputSkipsTranscription(t *testing.T) {
	f := newFixture(t, structuredReply("Hello there, how can I help?", "agent-sales", "UEBA: Normal"), Options{})
	f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{
		Text:         "  What loans do you offer?  ",
		TextProvided: true,
		Audio:        []byte("ignored audio"),
	})

	assert.Equal(t, "  What loans do you offer?  ", res.UserText)
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, entity.CallSkipped, res.Calls.Get(entity.IntegrationTranscription))

	require.Len(t, f.generator.calls, 1)
	call := f.generator.calls[0]
	assert.Equal(t, "  What loans do you offer?  ", call.Transcript)
	assert.Equal(t, "Anvay Ghare", call.CustomerName)
	assert.Equal(t, 777, call.CreditScore)

	assert.Equal(t, entity.AgentSales, res.ActiveAgent)
	assert.Equal(t, "UEBA: Normal", res.UEBALog)
	assert.Equal(t, entity.ReplyStructured, res.Variant)
}

func TestProcess_EmptyTextInputDoesNotFallBackToAudio(t *testing.T) {
	f := newFixture(t, "unused", Options{})
	f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{TextProvided: true, Audio: []byte("audio")})

	assert.Equal(t, ListeningMessage, res.AIText)
	f.transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_WhitespaceTextInputStillCallsModel(t *testing.T) {
	f := newFixture(t, structuredReply("How can I help you today?", "agent-sales", "UEBA: ok"), Options{})
	f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{Text: "   ", TextProvided: true})

	require.Len(t, f.generator.calls, 1)
	assert.Equal(t, "   ", f.generator.calls[0].Transcript)
	assert.Equal(t, "How can I help you today?", res.AIText)
	assert.Equal(t, entity.CallSuccess, res.Calls.Get(entity.IntegrationGeneration))
}

func TestProcess_ProseMentioningDocAgentIssuesNoLetter(t *testing.T) {
	raw := `Your loan is approved. Details: {"text": "x", "active_agent": "agent-doc"}`
	f := newFixture(t, raw, Options{})
	f.synthesizer.On("Synthesize", mock.Anything, raw).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{Text: "am I approved", TextProvided: true})

	assert.Equal(t, raw, res.AIText)
	assert.Equal(t, entity.AgentMaster, res.ActiveAgent)
	assert.Equal(t, entity.ReplyRawText, res.Variant)
	assert.Nil(t, res.PDFURL)
	assert.Equal(t, entity.CallSkipped, res.Calls.Get(entity.IntegrationDocument))
}

func TestProcess_TranscriptionStatusErrorDegradesSilently(t *testing.T) {
	f := newFixture(t, "unused", Options{})
	f.transcriber.On("Transcribe", mock.Anything, []byte("audio"), "audio/webm").
		Return("", &upstream.StatusError{Service: "deepgram", StatusCode: 401, Body: "unauthorized"})
	f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{Audio: []byte("audio"), AudioMIME: "audio/webm"})

	assert.Empty(t, res.UserText)
	assert.Equal(t, ListeningMessage, res.AIText)
	assert.Equal(t, entity.CallFailed, res.Calls.Get(entity.IntegrationTranscription))
	f.transcriber.AssertExpectations(t)
}

func TestProcess_MalformedTranscriptionIsDegraded(t *testing.T) {
	f := newFixture(t, structuredReply("I see your ID card, verified.", "agent-verify", "UEBA: ID Verified."), Options{})
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("%w: transcript path missing", upstream.ErrMalformedResponse))
	f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{Audio: []byte("audio"), Image: []byte{0xFF, 0xD8}, ImageMIME: "image/jpeg"})

	assert.Equal(t, entity.CallDegraded, res.Calls.Get(entity.IntegrationTranscription))
	require.Len(t, f.generator.calls, 1)
	assert.True(t, f.generator.calls[0].HasImage())
	assert.Equal(t, entity.AgentVerify, res.ActiveAgent)
}

func TestProcess_AudioTranscribed(t *testing.T) {
	f := newFixture(t, structuredReply("Your score qualifies you.", "agent-risk", "UEBA: Risk check"), Options{})
	f.transcriber.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("am I eligible", nil)
	f.synthesizer.On("Synthesize", mock.Anything, "Your score qualifies you.").Return([]byte("mp3-bytes"), nil)

	res := f.orch.Process(context.Background(), Input{Audio: []byte("audio")})

	assert.Equal(t, "am I eligible", res.UserText)
	assert.Equal(t, entity.CallSuccess, res.Calls.Get(entity.IntegrationTranscription))
	require.NotNil(t, res.AudioBase64)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3-bytes")), *res.AudioBase64)
	assert.Equal(t, entity.CallSuccess, res.Calls.Get(entity.IntegrationSynthesis))
}

func TestProcess_DocAgentIssuesLetter(t *testing.T) {
	f := newFixture(t, structuredReply("Here is your sanction letter.", "agent-doc", "UEBA: Doc issued"), Options{})
	f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{Text: "send my sanction letter", TextProvided: true})

	require.NotNil(t, res.PDFURL)
	require.NotNil(t, res.Letter)
	assert.Equal(t, DownloadPath+"?id="+res.Letter.ID, *res.PDFURL)
	assert.Equal(t, entity.CallSuccess, res.Calls.Get(entity.IntegrationDocument))

	content, err := os.ReadFile(res.Letter.Path)
	require.NoError(t, err)
	assert.Greater(t, len(content), 0)
	assert.Contains(t, string(content), "Anvay Ghare")
	assert.Contains(t, string(content), "500000")

	latest, err := f.letters.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, res.Letter.ID, latest.ID)
}

func TestProcess_LetterFailureOmitsURL(t *testing.T) {
	gen := &fakeGenerator{reply: structuredReply("Here is your letter.", "agent-doc", "UEBA: Doc")}
	synth := new(MockSynthesizer)
	synth.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)
	orch := NewOrchestrator(new(MockTranscriber), gen, synth, fixedBureau{}, failingIssuer{}, nil, Options{})

	res := orch.Process(context.Background(), Input{Text: "letter please", TextProvided: true})

	assert.Nil(t, res.PDFURL)
	assert.Equal(t, entity.AgentDoc, res.ActiveAgent)
	assert.Equal(t, entity.CallFailed, res.Calls.Get(entity.IntegrationDocument))
}

func TestProcess_NonJSONReplyKeptVerbatim(t *testing.T) {
	raw := "Sure! {not json} here is ```some``` text"
	f := newFixture(t, raw, Options{})
	f.synthesizer.On("Synthesize", mock.Anything, raw).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{Text: "hi", TextProvided: true})

	assert.Equal(t, raw, res.AIText)
	assert.Equal(t, entity.AgentMaster, res.ActiveAgent)
	assert.Equal(t, entity.DefaultUEBALog, res.UEBALog)
	assert.Equal(t, entity.ReplyRawText, res.Variant)
	assert.Nil(t, res.PDFURL)
}

func TestProcess_ShortAnswerSkipsSynthesis(t *testing.T) {
	f := newFixture(t, structuredReply("Hi!", "agent-sales", "UEBA: ok"), Options{})

	res := f.orch.Process(context.Background(), Input{Text: "hello", TextProvided: true})

	assert.Equal(t, "Hi!", res.AIText)
	assert.Nil(t, res.AudioBase64)
	assert.Equal(t, entity.CallSkipped, res.Calls.Get(entity.IntegrationSynthesis))
	f.synthesizer.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)
}

func TestProcess_ExactlyFiveCharactersSkipsSynthesis(t *testing.T) {
	f := newFixture(t, structuredReply("Hello", "agent-sales", "UEBA: ok"), Options{})

	res := f.orch.Process(context.Background(), Input{Text: "hello", TextProvided: true})

	assert.Nil(t, res.AudioBase64)
	f.synthesizer.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything)
}

func TestProcess_SynthesisFailureOmitsAudio(t *testing.T) {
	f := newFixture(t, structuredReply("A longer answer text.", "agent-sales", "UEBA: ok"), Options{})
	f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return(nil, upstream.ErrMissingAPIKey)

	res := f.orch.Process(context.Background(), Input{Text: "hello", TextProvided: true})

	assert.Nil(t, res.AudioBase64)
	assert.Equal(t, entity.CallFailed, res.Calls.Get(entity.IntegrationSynthesis))
}

func TestProcess_GenerationFailureUsesConnectingMessage(t *testing.T) {
	f := newFixture(t, "", Options{})
	f.generator.err = errors.New("dial tcp: connection refused")
	f.synthesizer.On("Synthesize", mock.Anything, ConnectingMessage).Return([]byte("mp3"), nil)

	res := f.orch.Process(context.Background(), Input{Text: "hello", TextProvided: true})

	assert.Equal(t, ConnectingMessage, res.AIText)
	assert.Equal(t, entity.AgentMaster, res.ActiveAgent)
	assert.Equal(t, entity.DefaultUEBALog, res.UEBALog)
	assert.Equal(t, entity.CallFailed, res.Calls.Get(entity.IntegrationGeneration))
}

func TestProcess_AgentLabelPolicy(t *testing.T) {
	reply := structuredReply("Routing you to our partner desk.", "agent-partner", "UEBA: routed")

	t.Run("permissive keeps label", func(t *testing.T) {
		f := newFixture(t, reply, Options{})
		f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

		res := f.orch.Process(context.Background(), Input{Text: "hello", TextProvided: true})
		assert.Equal(t, entity.AgentLabel("agent-partner"), res.ActiveAgent)
	})

	t.Run("strict replaces unknown label", func(t *testing.T) {
		f := newFixture(t, reply, Options{StrictLabels: true})
		f.synthesizer.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)

		res := f.orch.Process(context.Background(), Input{Text: "hello", TextProvided: true})
		assert.Equal(t, entity.AgentMaster, res.ActiveAgent)
	})
}

func TestProcess_PublishesInteraction(t *testing.T) {
	gen := &fakeGenerator{reply: structuredReply("Welcome to FinCore.", "agent-sales", "UEBA: ok")}
	synth := new(MockSynthesizer)
	synth.On("Synthesize", mock.Anything, mock.Anything).Return([]byte("mp3"), nil)
	pub := new(MockPublisher)
	pub.On("PublishInteraction", mock.Anything, mock.MatchedBy(func(in *entity.Interaction) bool {
		return in.RequestID == "req-42" &&
			in.ActiveAgent == "agent-sales" &&
			strings.Join(in.Modalities, ",") == "text,image" &&
			in.Calls.Get(entity.IntegrationGeneration) == entity.CallSuccess
	})).Return(errors.New("redis down"))

	orch := NewOrchestrator(new(MockTranscriber), gen, synth, fixedBureau{}, failingIssuer{}, pub, Options{})
	res := orch.Process(context.Background(), Input{
		Text:         "hello",
		TextProvided: true,
		Image:        []byte{0x89, 0x50},
		RequestID:    "req-42",
	})

	assert.Equal(t, "Welcome to FinCore.", res.AIText)
	pub.AssertExpectations(t)
}
