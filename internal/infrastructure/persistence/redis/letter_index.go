package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/domain/repository"
)

const letterKeyPrefix = "fincore:letters:"

// LetterIndex 基于 Redis 的批复函索引，多实例共享同一份"最新批复函"
type LetterIndex struct {
	client *Client
	ttl    time.Duration
}

// NewLetterIndex 创建 Redis 批复函索引，ttl<=0 时不过期
func NewLetterIndex(client *Client, ttl time.Duration) *LetterIndex {
	return &LetterIndex{client: client, ttl: ttl}
}

// Put 写入批复函并更新 latest 指针
func (l *LetterIndex) Put(ctx context.Context, letter *entity.SanctionLetter) error {
	ctx, span := tracer.Start(ctx, "redis.LetterIndex.Put",
		trace.WithAttributes(attribute.String("letter.id", letter.ID)))
	defer span.End()

	payload, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("encode sanction letter: %w", err)
	}

	_, err = l.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, letterKey(letter.ID), payload, l.ttl)
		pipe.Set(ctx, latestLetterKey(), letter.ID, l.ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("index sanction letter: %w", err)
	}
	return nil
}

// Get 按 ID 查询
func (l *LetterIndex) Get(ctx context.Context, id string) (*entity.SanctionLetter, error) {
	raw, err := l.client.Get(ctx, letterKey(id))
	if err != nil {
		if IsNil(err) {
			return nil, repository.ErrLetterNotFound
		}
		return nil, fmt.Errorf("get sanction letter %s: %w", id, err)
	}

	var letter entity.SanctionLetter
	if err := json.Unmarshal([]byte(raw), &letter); err != nil {
		return nil, fmt.Errorf("decode sanction letter %s: %w", id, err)
	}
	return &letter, nil
}

// Latest 返回最新一份批复函
func (l *LetterIndex) Latest(ctx context.Context) (*entity.SanctionLetter, error) {
	id, err := l.client.Get(ctx, latestLetterKey())
	if err != nil {
		if IsNil(err) {
			return nil, repository.ErrLetterNotFound
		}
		return nil, fmt.Errorf("get latest sanction letter: %w", err)
	}
	return l.Get(ctx, id)
}

func letterKey(id string) string {
	return letterKeyPrefix + id
}

func latestLetterKey() string {
	return letterKeyPrefix + "latest"
}

var _ repository.LetterIndex = (*LetterIndex)(nil)
