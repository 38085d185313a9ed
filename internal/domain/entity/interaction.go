package entity

import "time"

// Modality 输入模态
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
	ModalityImage Modality = "image"
)

// Interaction 一轮已处理的对话，仅用于 UEBA 审计
type Interaction struct {
	ID          string       `json:"id" gorm:"type:uuid;primaryKey"`
	RequestID   string       `json:"request_id" gorm:"type:varchar(64);index"`
	Modalities  []string     `json:"modalities" gorm:"type:text[]"`
	UserText    string       `json:"user_text" gorm:"type:text"`
	AIText      string       `json:"ai_text" gorm:"type:text"`
	ActiveAgent string       `json:"active_agent" gorm:"type:text;index"`
	UEBALog     string       `json:"ueba_log" gorm:"type:text"`
	LetterID    string       `json:"letter_id,omitempty" gorm:"type:varchar(64)"`
	Calls       CallStatuses `json:"calls" gorm:"type:jsonb"`
	DurationMs  int64        `json:"duration_ms" gorm:"not null;default:0"`
	OccurredAt  time.Time    `json:"occurred_at" gorm:"not null;index"`
	CreatedAt   time.Time    `json:"created_at" gorm:"autoCreateTime"`
}

func (Interaction) TableName() string {
	return "ueba_interactions"
}
