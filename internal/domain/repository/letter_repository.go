// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"errors"

	"fincore-agent-api/internal/domain/entity"
)

// ErrLetterNotFound 批复函不存在
var ErrLetterNotFound = errors.New("sanction letter not found")

// LetterIndex 批复函索引，记录 ID 到文件的映射以及最新一份批复函
type LetterIndex interface {
	// Put 记录批复函并将其设为最新
	Put(ctx context.Context, letter *entity.SanctionLetter) error
	// Get 按 ID 查询，不存在时返回 ErrLetterNotFound
	Get(ctx context.Context, id string) (*entity.SanctionLetter, error)
	// Latest 返回最新一份批复函，不存在时返回 ErrLetterNotFound
	Latest(ctx context.Context) (*entity.SanctionLetter, error)
}
