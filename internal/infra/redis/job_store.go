package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.JobStore = (*JobStore)(nil)

// JobStore keeps the job registry in Redis so pending work survives a restart.
// Jobs live as JSON in one hash; non-terminal jobs are indexed by next run time in a
// sorted set.
type JobStore struct {
	cli     *redis.Client
	jobsKey string
	dueKey  string
}

func NewJobStore(c *Client, prefix string) *JobStore {
	if prefix == "" {
		prefix = "pipeline"
	}
	return &JobStore{cli: c.cli, jobsKey: prefix + ":jobs", dueKey: prefix + ":due"}
}

func (s *JobStore) Add(ctx context.Context, job *model.Job) error {
	return s.write(ctx, job)
}

func (s *JobStore) Save(ctx context.Context, job *model.Job) error {
	n, err := s.cli.HExists(ctx, s.jobsKey, job.ID).Result()
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	if !n {
		return fmt.Errorf("save job %s: %w", job.ID, domain.ErrNotFound)
	}
	return s.write(ctx, job)
}

func (s *JobStore) write(ctx context.Context, job *model.Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	_, err = s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.jobsKey, job.ID, b)
		if job.Terminal() {
			p.ZRem(ctx, s.dueKey, job.ID)
		} else {
			p.ZAdd(ctx, s.dueKey, &redis.Z{Score: float64(job.NextRunAt.UnixMilli()), Member: job.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}

func (s *JobStore) Remove(ctx context.Context, id string) error {
	_, err := s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.jobsKey, id)
		p.ZRem(ctx, s.dueKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove job %s: %w", id, err)
	}
	return nil
}

func (s *JobStore) Due(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	ids, err := s.cli.ZRangeByScore(ctx, s.dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("due jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := s.cli.HMGet(ctx, s.jobsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("due jobs: %w", err)
	}
	out := make([]*model.Job, 0, len(vals))
	var stale []interface{}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// hash entry gone; the index entry is stale
			stale = append(stale, ids[i])
			continue
		}
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, err
		}
		if job.Eligible(now) {
			out = append(out, &job)
		}
	}
	if len(stale) > 0 {
		if err := s.cli.ZRem(ctx, s.dueKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("drop stale due entries: %w", err)
		}
	}
	return out, nil
}

func (s *JobStore) List(ctx context.Context) ([]*model.Job, error) {
	all, err := s.cli.HGetAll(ctx, s.jobsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*model.Job, 0, len(all))
	for _, raw := range all {
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, err
		}
		out = append(out, &job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
