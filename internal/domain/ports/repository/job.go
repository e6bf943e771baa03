package repository

import (
	"context"
	"time"

	"integrity-pipeline/internal/domain/model"
)

// JobStore is the registry behind the scheduler. Implementations hand out copies, so
// callers must Save a job after mutating it.
type JobStore interface {
	Add(ctx context.Context, job *model.Job) error
	Save(ctx context.Context, job *model.Job) error
	Remove(ctx context.Context, id string) error
	// Due returns at most limit eligible jobs ordered by NextRunAt.
	Due(ctx context.Context, now time.Time, limit int) ([]*model.Job, error)
	List(ctx context.Context) ([]*model.Job, error)
}
