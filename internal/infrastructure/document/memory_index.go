package document

import (
	"context"
	"sync"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/domain/repository"
)

// MemoryIndex 进程内批复函索引
type MemoryIndex struct {
	mu      sync.RWMutex
	letters map[string]entity.SanctionLetter
	latest  string
}

// NewMemoryIndex 创建进程内索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{letters: make(map[string]entity.SanctionLetter)}
}

func (m *MemoryIndex) Put(_ context.Context, letter *entity.SanctionLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters[letter.ID] = *letter
	m.latest = letter.ID
	return nil
}

func (m *MemoryIndex) Get(_ context.Context, id string) (*entity.SanctionLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.letters[id]
	if !ok {
		return nil, repository.ErrLetterNotFound
	}
	return &l, nil
}

func (m *MemoryIndex) Latest(ctx context.Context) (*entity.SanctionLetter, error) {
	m.mu.RLock()
	id := m.latest
	m.mu.RUnlock()
	if id == "" {
		return nil, repository.ErrLetterNotFound
	}
	return m.Get(ctx, id)
}

var _ repository.LetterIndex = (*MemoryIndex)(nil)
