// Package entity 定义领域实体
package entity

// CreditProfile 征信快照，每次请求重新生成，不落库
type CreditProfile struct {
	Score int    `json:"score"`
	Limit int64  `json:"limit"`
	Name  string `json:"name"`
}
