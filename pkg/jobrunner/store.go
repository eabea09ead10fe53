package jobrunner

import (
	"context"
	"errors"
	"sync"

	"github.com/flowbaker/weave/pkg/domain"
)

var ErrRunNotFound = errors.New("run not found")

// RunStore persists job run records. Get returns ErrRunNotFound for unknown ids.
type RunStore interface {
	Save(ctx context.Context, run domain.JobRun) error
	Get(ctx context.Context, id string) (domain.JobRun, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]domain.JobRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]domain.JobRun),
	}
}

func (s *MemoryStore) Save(ctx context.Context, run domain.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return domain.JobRun{}, ErrRunNotFound
	}

	return run, nil
}
