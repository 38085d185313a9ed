package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/domain/repository"
	"fincore-agent-api/pkg/logger"
	"fincore-agent-api/pkg/metrics"
)

const latestKey = "latest"

// FileStore 将批复函写入本地目录并维护索引
type FileStore struct {
	dir      string
	index    repository.LetterIndex
	renderer *Renderer
	now      func() time.Time
	group    singleflight.Group
}

// NewFileStore 创建批复函存储，目录不存在时自动创建
func NewFileStore(dir string, index repository.LetterIndex, renderer *Renderer) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create letters dir %s: %w", dir, err)
	}
	return &FileStore{
		dir:      dir,
		index:    index,
		renderer: renderer,
		now:      time.Now,
	}, nil
}

// Issue 按征信快照渲染并保存一份新的批复函
func (s *FileStore) Issue(ctx context.Context, profile entity.CreditProfile) (*entity.SanctionLetter, error) {
	letter := &entity.SanctionLetter{
		ID:        uuid.NewString(),
		Applicant: profile.Name,
		Amount:    profile.Limit,
		CreatedAt: s.now(),
	}

	content, err := s.renderer.Render(letter.Amount, letter.Applicant, letter.CreatedAt)
	if err != nil {
		metrics.LettersGeneratedTotal.WithLabelValues("render_error").Inc()
		return nil, err
	}
	if err := s.Save(ctx, letter, content); err != nil {
		metrics.LettersGeneratedTotal.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	metrics.LettersGeneratedTotal.WithLabelValues("success").Inc()
	logger.Info(logger.WithContext(ctx, logger.LetterIDKey, letter.ID), "sanction letter issued",
		"applicant", letter.Applicant,
		"amount", letter.Amount,
		"bytes", len(content),
	)
	return letter, nil
}

// Save 原子写入 <dir>/<id>.pdf 并登记到索引，下载方不会读到写了一半的文件
func (s *FileStore) Save(ctx context.Context, letter *entity.SanctionLetter, content []byte) error {
	if letter.ID == "" {
		return errors.New("sanction letter id is empty")
	}

	path := filepath.Join(s.dir, letter.ID+".pdf")
	if err := writeFileAtomic(s.dir, path, content); err != nil {
		return err
	}
	letter.Path = path

	if err := s.index.Put(ctx, letter); err != nil {
		return fmt.Errorf("index sanction letter %s: %w", letter.ID, err)
	}
	return nil
}

// Resolve 按 ID 查询批复函，ID 为空时返回最新一份；文件缺失视为不存在
func (s *FileStore) Resolve(ctx context.Context, id string) (*entity.SanctionLetter, error) {
	var (
		letter *entity.SanctionLetter
		err    error
	)
	if id == "" {
		letter, err = s.Latest(ctx)
	} else {
		letter, err = s.index.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(letter.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrLetterNotFound
		}
		return nil, fmt.Errorf("stat sanction letter %s: %w", letter.ID, err)
	}
	return letter, nil
}

// Latest 返回最新一份批复函，并发查询合并为一次索引访问
func (s *FileStore) Latest(ctx context.Context) (*entity.SanctionLetter, error) {
	v, err, _ := s.group.Do(latestKey, func() (interface{}, error) {
		return s.index.Latest(ctx)
	})
	if err != nil {
		return nil, err
	}
	letter := *v.(*entity.SanctionLetter)
	return &letter, nil
}

// Dir 返回存储目录
func (s *FileStore) Dir() string {
	return s.dir
}

// HealthCheck 检查存储目录可写
func (s *FileStore) HealthCheck(_ context.Context) error {
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return fmt.Errorf("letters dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func writeFileAtomic(dir, path string, content []byte) error {
	tmp, err := os.CreateTemp(dir, ".letter-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp letter: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp letter: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp letter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp letter: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp letter: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename letter into place: %w", err)
	}
	return nil
}
