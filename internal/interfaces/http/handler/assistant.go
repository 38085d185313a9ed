package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"fincore-agent-api/internal/application/assistant"
	"fincore-agent-api/internal/interfaces/http/dto"
	"fincore-agent-api/pkg/logger"
)

const (
	formTextInput = "text_input"
	formAudioData = "audio_data"
	formImageData = "image_data"
)

// AssistantHandler 对话处理器
type AssistantHandler struct {
	orch *assistant.Orchestrator
}

// NewAssistantHandler 创建对话处理器
func NewAssistantHandler(orch *assistant.Orchestrator) *AssistantHandler {
	return &AssistantHandler{orch: orch}
}

// ProcessAudio 处理一轮语音/文本/图片输入
// @Summary 处理一轮对话
// @Tags Assistant
// @Accept multipart/form-data
// @Produce json
// @Param text_input formData string false "文本输入，出现时不再转写音频"
// @Param audio_data formData file false "录音"
// @Param image_data formData file false "证件或其他图片"
// @Success 200 {object} dto.ProcessAudioResponse
// @Router /process_audio [post]
func (h *AssistantHandler) ProcessAudio(c *gin.Context) {
	ctx := c.Request.Context()

	in := assistant.Input{RequestID: c.GetString("request_id")}
	in.Text, in.TextProvided = c.GetPostForm(formTextInput)

	var err error
	in.Audio, in.AudioMIME, err = readUpload(c, formAudioData)
	if err != nil {
		logger.Warn(ctx, "ignoring unreadable audio upload", "error", err.Error())
	}
	in.Image, in.ImageMIME, err = readUpload(c, formImageData)
	if err != nil {
		logger.Warn(ctx, "ignoring unreadable image upload", "error", err.Error())
	}

	res := h.orch.Process(ctx, in)
	c.JSON(http.StatusOK, dto.ToProcessAudioResponse(res))
}

// readUpload 读取表单文件；字段缺失时返回空内容
func readUpload(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read %s: %w", field, err)
	}

	data, err := readFileHeader(fh)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, "", nil
	}
	return data, detectMIME(fh.Header.Get("Content-Type"), data), nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// detectMIME 优先使用客户端声明的类型，缺失或为通用二进制时按内容识别
func detectMIME(declared string, data []byte) string {
	mt := strings.TrimSpace(declared)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	return mimetype.Detect(data).String()
}
