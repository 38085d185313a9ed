// Package assistant 编排一轮语音/文本/图片对话：转写、生成、批复函与语音合成
package assistant

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/infrastructure/upstream"
	wfmodel "fincore-agent-api/internal/workflow/model"
	wfnode "fincore-agent-api/internal/workflow/node"
	"fincore-agent-api/pkg/logger"
	"fincore-agent-api/pkg/metrics"
)

const (
	// ListeningMessage 没有任何可用输入时的固定答复
	ListeningMessage = "I am listening... Please speak closer to the mic."
	// ConnectingMessage 生成服务不可达时的固定答复
	ConnectingMessage = "I am connecting to the secure server."

	// DownloadPath 批复函下载路由
	DownloadPath = "/download_pdf"

	defaultMinSpeechChars = 5
)

// Input 一轮对话的原始输入
type Input struct {
	Text string
	// TextProvided 表示表单中出现了 text_input 字段，即使值为空也不再转写音频
	TextProvided bool

	Audio     []byte
	AudioMIME string

	Image     []byte
	ImageMIME string

	RequestID string
}

// HasAudio 是否附带音频
func (in *Input) HasAudio() bool {
	return len(in.Audio) > 0
}

// HasImage 是否附带图片
func (in *Input) HasImage() bool {
	return len(in.Image) > 0
}

// Result 一轮对话的结果；AudioBase64 与 PDFURL 为 nil 表示未产生
type Result struct {
	UserText    string
	AIText      string
	AudioBase64 *string
	ActiveAgent entity.AgentLabel
	UEBALog     string
	PDFURL      *string

	Letter  *entity.SanctionLetter
	Calls   entity.CallStatuses
	Variant entity.ReplyVariant
}

// Options 编排行为开关
type Options struct {
	// StrictLabels 为 true 时未知 agent 标签回落为 agent-master
	StrictLabels bool
	// JSONResponse 请求模型以 JSON 对象格式返回
	JSONResponse bool
	// MinSpeechChars 答复超过该字符数才合成语音
	MinSpeechChars int
	// Provider 为空时使用默认 LLM 提供商
	Provider string
}

// Orchestrator 对话编排器。所有上游失败都降级为默认内容，不向调用方返回错误。
type Orchestrator struct {
	transcriber Transcriber
	generator   Generator
	synthesizer Synthesizer
	bureau      CreditBureau
	letters     LetterIssuer
	publisher   InteractionPublisher
	opts        Options
}

// NewOrchestrator 创建编排器，publisher 可为 nil（不投递审计事件）
func NewOrchestrator(
	transcriber Transcriber,
	generator Generator,
	synthesizer Synthesizer,
	bureau CreditBureau,
	letters LetterIssuer,
	publisher InteractionPublisher,
	opts Options,
) *Orchestrator {
	if opts.MinSpeechChars <= 0 {
		opts.MinSpeechChars = defaultMinSpeechChars
	}
	return &Orchestrator{
		transcriber: transcriber,
		generator:   generator,
		synthesizer: synthesizer,
		bureau:      bureau,
		letters:     letters,
		publisher:   publisher,
		opts:        opts,
	}
}

// Process 处理一轮对话
func (o *Orchestrator) Process(ctx context.Context, in Input) *Result {
	start := time.Now()
	res := &Result{
		ActiveAgent: entity.AgentMaster,
		UEBALog:     entity.DefaultUEBALog,
		Variant:     entity.ReplyRawText,
		Calls:       entity.CallStatuses{},
	}

	res.UserText = o.resolveTranscript(ctx, &in, res.Calls)
	logger.Debug(ctx, "transcript resolved",
		"text_provided", in.TextProvided,
		"has_audio", in.HasAudio(),
		"has_image", in.HasImage(),
		"transcript", res.UserText,
	)

	var profile entity.CreditProfile
	// 仅空串视为无输入，纯空白文本仍交给模型
	if res.UserText == "" && !in.HasImage() {
		res.AIText = ListeningMessage
		res.Calls[entity.IntegrationGeneration] = entity.CallSkipped
	} else {
		profile = o.bureau.Lookup(ctx)
		o.generate(ctx, &in, profile, res)
	}

	ctx = logger.WithContext(ctx, logger.AgentKey, res.ActiveAgent.String())
	metrics.AgentRoutedTotal.WithLabelValues(agentMetricLabel(res.ActiveAgent)).Inc()

	if res.ActiveAgent == entity.AgentDoc {
		o.issueLetter(ctx, profile, res)
	}

	o.synthesize(ctx, res)

	logger.Info(ctx, "interaction processed",
		"variant", string(res.Variant),
		"pdf", res.PDFURL != nil,
		"audio", res.AudioBase64 != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	o.publish(ctx, &in, res, time.Since(start))
	return res
}

// resolveTranscript text_input 优先；否则转写音频，失败时返回空串
func (o *Orchestrator) resolveTranscript(ctx context.Context, in *Input, calls entity.CallStatuses) string {
	if in.TextProvided {
		calls[entity.IntegrationTranscription] = entity.CallSkipped
		return in.Text
	}
	if !in.HasAudio() || o.transcriber == nil {
		calls[entity.IntegrationTranscription] = entity.CallSkipped
		return ""
	}

	transcript, err := o.transcriber.Transcribe(ctx, in.Audio, in.AudioMIME)
	if err != nil {
		calls[entity.IntegrationTranscription] = statusFromError(err)
		logger.Warn(ctx, "transcription failed, continuing with empty transcript",
			"audio_bytes", len(in.Audio),
			"error", err.Error(),
		)
		return ""
	}
	if strings.TrimSpace(transcript) == "" {
		calls[entity.IntegrationTranscription] = entity.CallDegraded
		return ""
	}
	calls[entity.IntegrationTranscription] = entity.CallSuccess
	return transcript
}

func (o *Orchestrator) generate(ctx context.Context, in *Input, profile entity.CreditProfile, res *Result) {
	if o.generator == nil {
		res.AIText = ConnectingMessage
		res.Calls[entity.IntegrationGeneration] = entity.CallFailed
		return
	}

	raw, err := o.generator.Invoke(ctx, &wfmodel.AgentTurnInput{
		Transcript:   res.UserText,
		CustomerName: profile.Name,
		CreditScore:  profile.Score,
		Image:        in.Image,
		ImageMIME:    in.ImageMIME,
		Provider:     o.opts.Provider,
		JSONResponse: o.opts.JSONResponse,
	})
	if err != nil {
		logger.Error(ctx, "generation failed", err)
		res.AIText = ConnectingMessage
		res.Calls[entity.IntegrationGeneration] = entity.CallFailed
		return
	}
	logger.Debug(ctx, "generation reply", "preview", wfnode.TruncateByRunes(raw, 50))

	reply := ParseAgentReply(raw)
	if o.opts.StrictLabels && !reply.ActiveAgent.IsKnown() {
		logger.Warn(ctx, "unknown agent label replaced", "label", reply.ActiveAgent.String())
		reply.ActiveAgent = entity.AgentMaster
	}
	metrics.ReplyParseTotal.WithLabelValues(string(reply.Variant)).Inc()

	res.AIText = reply.Text
	res.ActiveAgent = reply.ActiveAgent
	res.UEBALog = reply.UEBALog
	res.Variant = reply.Variant
	if strings.TrimSpace(reply.Text) == "" {
		res.Calls[entity.IntegrationGeneration] = entity.CallDegraded
	} else {
		res.Calls[entity.IntegrationGeneration] = entity.CallSuccess
	}
}

func (o *Orchestrator) issueLetter(ctx context.Context, profile entity.CreditProfile, res *Result) {
	if o.letters == nil {
		res.Calls[entity.IntegrationDocument] = entity.CallFailed
		return
	}
	letter, err := o.letters.Issue(ctx, profile)
	if err != nil {
		logger.Error(ctx, "sanction letter generation failed", err)
		res.Calls[entity.IntegrationDocument] = entity.CallFailed
		return
	}
	url := DownloadPath + "?id=" + letter.ID
	res.Letter = letter
	res.PDFURL = &url
	res.Calls[entity.IntegrationDocument] = entity.CallSuccess
}

// synthesize 仅在答复长度超过阈值时合成语音，失败时不返回音频
func (o *Orchestrator) synthesize(ctx context.Context, res *Result) {
	if wfnode.RuneLen(res.AIText) <= o.opts.MinSpeechChars || o.synthesizer == nil {
		res.Calls[entity.IntegrationSynthesis] = entity.CallSkipped
		return
	}
	audio, err := o.synthesizer.Synthesize(ctx, res.AIText)
	if err != nil {
		logger.Warn(ctx, "speech synthesis failed, omitting audio", "error", err.Error())
		res.Calls[entity.IntegrationSynthesis] = statusFromError(err)
		return
	}
	encoded := base64.StdEncoding.EncodeToString(audio)
	res.AudioBase64 = &encoded
	res.Calls[entity.IntegrationSynthesis] = entity.CallSuccess
}

func (o *Orchestrator) publish(ctx context.Context, in *Input, res *Result, elapsed time.Duration) {
	if o.publisher == nil {
		return
	}
	now := time.Now().UTC()
	evt := &entity.Interaction{
		ID:          uuid.NewString(),
		RequestID:   in.RequestID,
		Modalities:  modalities(in),
		UserText:    res.UserText,
		AIText:      res.AIText,
		ActiveAgent: res.ActiveAgent.String(),
		UEBALog:     res.UEBALog,
		Calls:       res.Calls,
		DurationMs:  elapsed.Milliseconds(),
		OccurredAt:  now,
	}
	if res.Letter != nil {
		evt.LetterID = res.Letter.ID
	}
	if err := o.publisher.PublishInteraction(ctx, evt); err != nil {
		logger.Error(ctx, "failed to publish interaction event", err, "interaction_id", evt.ID)
	}
}

func modalities(in *Input) []string {
	out := make([]string, 0, 3)
	if in.TextProvided {
		out = append(out, string(entity.ModalityText))
	}
	if in.HasAudio() {
		out = append(out, string(entity.ModalityAudio))
	}
	if in.HasImage() {
		out = append(out, string(entity.ModalityImage))
	}
	return out
}

// statusFromError 请求已发出但响应不可用视为 degraded，其余为 failed
func statusFromError(err error) entity.CallStatus {
	if errors.Is(err, upstream.ErrMalformedResponse) {
		return entity.CallDegraded
	}
	return entity.CallFailed
}

// agentMetricLabel 限制指标标签基数
func agentMetricLabel(a entity.AgentLabel) string {
	if a.IsKnown() {
		return a.String()
	}
	return "other"
}
