package entity

import "time"

// SanctionLetter 贷款批复函
type SanctionLetter struct {
	ID        string    `json:"id"`
	Applicant string    `json:"applicant"`
	Amount    int64     `json:"amount"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
