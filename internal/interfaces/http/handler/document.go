package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/domain/repository"
	"fincore-agent-api/internal/interfaces/http/dto"
	apperrors "fincore-agent-api/pkg/errors"
	"fincore-agent-api/pkg/logger"
)

// LetterResolver 按 ID 查询批复函，ID 为空时返回最新一份
type LetterResolver interface {
	Resolve(ctx context.Context, id string) (*entity.SanctionLetter, error)
}

// DocumentHandler 批复函下载处理器
type DocumentHandler struct {
	letters      LetterResolver
	downloadName string
}

// NewDocumentHandler 创建批复函下载处理器
func NewDocumentHandler(letters LetterResolver, downloadName string) *DocumentHandler {
	if downloadName == "" {
		downloadName = "Sanction_Letter.pdf"
	}
	return &DocumentHandler{letters: letters, downloadName: downloadName}
}

// Download 以附件形式返回批复函
// @Summary 下载批复函
// @Tags Documents
// @Produce application/pdf
// @Param id query string false "批复函 ID，缺省时返回最新一份"
// @Success 200 {file} file
// @Failure 404 {object} dto.ErrorResponse
// @Router /download_pdf [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Query("id")

	letter, err := h.letters.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrLetterNotFound) {
			dto.FromAppError(c, apperrors.ErrLetterNotFound)
			return
		}
		logger.Error(ctx, "failed to resolve sanction letter", err, "letter_id", id)
		dto.FromAppError(c, apperrors.ErrStorage)
		return
	}

	logger.Info(logger.WithContext(ctx, logger.LetterIDKey, letter.ID), "serving sanction letter")
	c.FileAttachment(letter.Path, h.downloadName)
}
