// Package bureau 提供征信数据源
package bureau

import (
	"context"
	"math/rand/v2"
	"sync"

	"fincore-agent-api/internal/domain/entity"
)

const (
	MinScore      = 720
	MaxScore      = 850
	SanctionLimit = int64(500000)
	ApplicantName = "Anvay Ghare"
)

// MockBureau 模拟征信接口：分数在 [720, 850] 内均匀随机，额度与姓名固定
type MockBureau struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockBureau 使用全局随机源创建模拟征信接口
func NewMockBureau() *MockBureau {
	return &MockBureau{}
}

// NewMockBureauWithSource 使用指定随机源创建，便于测试复现
func NewMockBureauWithSource(src rand.Source) *MockBureau {
	return &MockBureau{rnd: rand.New(src)}
}

// Lookup 返回一份新的征信快照
func (b *MockBureau) Lookup(_ context.Context) entity.CreditProfile {
	return entity.CreditProfile{
		Score: MinScore + b.intN(MaxScore-MinScore+1),
		Limit: SanctionLimit,
		Name:  ApplicantName,
	}
}

func (b *MockBureau) intN(n int) int {
	if b.rnd == nil {
		return rand.IntN(n)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rnd.IntN(n)
}
