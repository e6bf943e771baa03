package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/repository"
)

var _ repository.JobStore = (*MemoryStore)(nil)

// MemoryStore is the default process-local registry. It stores and returns clones.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

func (m *MemoryStore) Add(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("%w: job %s already registered", domain.ErrInvalidArgument, job.ID)
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryStore) Save(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return fmt.Errorf("save job %s: %w", job.ID, domain.ErrNotFound)
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Due(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	m.mu.RLock()
	var out []*model.Job
	for _, j := range m.jobs {
		if j.Eligible(now) {
			out = append(out, j.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].NextRunAt.Before(out[k].NextRunAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*model.Job, error) {
	m.mu.RLock()
	out := make([]*model.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}
