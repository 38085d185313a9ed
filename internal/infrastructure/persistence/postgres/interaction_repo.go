package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/domain/repository"
)

// interactionSchema 逐条执行，旧表中的 active_agent 放宽为 TEXT
var interactionSchema = []string{
	`CREATE TABLE IF NOT EXISTS ueba_interactions (
		id           UUID PRIMARY KEY,
		request_id   VARCHAR(64) NOT NULL DEFAULT '',
		modalities   TEXT[] NOT NULL DEFAULT '{}',
		user_text    TEXT NOT NULL DEFAULT '',
		ai_text      TEXT NOT NULL DEFAULT '',
		active_agent TEXT NOT NULL DEFAULT '',
		ueba_log     TEXT NOT NULL DEFAULT '',
		letter_id    VARCHAR(64),
		calls        JSONB NOT NULL DEFAULT '{}',
		duration_ms  BIGINT NOT NULL DEFAULT 0,
		occurred_at  TIMESTAMPTZ NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE ueba_interactions ALTER COLUMN active_agent TYPE TEXT`,
	`CREATE INDEX IF NOT EXISTS idx_ueba_interactions_occurred_at ON ueba_interactions (occurred_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_ueba_interactions_agent ON ueba_interactions (active_agent)`,
}

// InteractionRepository UEBA 交互事件仓储实现
type InteractionRepository struct {
	client *Client
}

// NewInteractionRepository 创建交互事件仓储
func NewInteractionRepository(client *Client) *InteractionRepository {
	return &InteractionRepository{client: client}
}

// EnsureSchema 创建事件表（幂等）
func (r *InteractionRepository) EnsureSchema(ctx context.Context) error {
	db := r.client.db.WithContext(ctx)
	for _, stmt := range interactionSchema {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to ensure ueba_interactions schema: %w", err)
		}
	}
	return nil
}

// Create 写入事件；同一事件被重复投递时按 ID 去重
func (r *InteractionRepository) Create(ctx context.Context, in *entity.Interaction) error {
	ctx, span := tracer.Start(ctx, "postgres.InteractionRepository.Create")
	defer span.End()

	calls, err := json.Marshal(in.Calls)
	if err != nil {
		return fmt.Errorf("failed to encode call statuses: %w", err)
	}

	modalities := in.Modalities
	if modalities == nil {
		modalities = []string{}
	}

	var letterID *string
	if in.LetterID != "" {
		letterID = &in.LetterID
	}

	query := `
		INSERT INTO ueba_interactions (id, request_id, modalities, user_text, ai_text, active_agent,
			ueba_log, letter_id, calls, duration_ms, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?::jsonb, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`
	err = r.client.db.WithContext(ctx).Exec(query,
		in.ID, in.RequestID, pq.Array(modalities), in.UserText, in.AIText, in.ActiveAgent,
		in.UEBALog, letterID, string(calls), in.DurationMs, in.OccurredAt,
	).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create interaction: %w", err)
	}
	return nil
}

// ListSince 按发生时间倒序列出事件
func (r *InteractionRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*entity.Interaction, error) {
	ctx, span := tracer.Start(ctx, "postgres.InteractionRepository.ListSince")
	defer span.End()

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, request_id, modalities, user_text, ai_text, active_agent, ueba_log,
			COALESCE(letter_id, ''), calls, duration_ms, occurred_at, created_at
		FROM ueba_interactions
		WHERE occurred_at >= ?
		ORDER BY occurred_at DESC
		LIMIT ?
	`
	rows, err := r.client.db.WithContext(ctx).Raw(query, since, limit).Rows()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var out []*entity.Interaction
	for rows.Next() {
		var (
			in    entity.Interaction
			calls []byte
		)
		if err := rows.Scan(
			&in.ID, &in.RequestID, pq.Array(&in.Modalities), &in.UserText, &in.AIText, &in.ActiveAgent,
			&in.UEBALog, &in.LetterID, &calls, &in.DurationMs, &in.OccurredAt, &in.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if len(calls) > 0 {
			if err := json.Unmarshal(calls, &in.Calls); err != nil {
				return nil, fmt.Errorf("failed to decode call statuses: %w", err)
			}
		}
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}
	return out, nil
}

var _ repository.InteractionRepository = (*InteractionRepository)(nil)
