package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"integrity-pipeline/internal/config"
	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/repository"
	"integrity-pipeline/internal/infra/logging"
	"integrity-pipeline/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runner advances one job by exactly one step. It mutates the job in place (status,
// attempts, next run time) and never returns an error: failures are recorded on the job.
type Runner interface {
	Advance(ctx context.Context, job *model.Job)
}

// Locker guards ticks when several processes share one registry. Extend pushes the
// expiry of a lease the caller still owns and returns domain.ErrLockHeld otherwise.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Extend(ctx context.Context, key, token string, ttl time.Duration) error
	Unlock(ctx context.Context, key, token string) error
}

type Option func(*Scheduler)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocker makes every tick take a lease on key first; a held lease skips the tick.
func WithLocker(l Locker, key string) Option {
	return func(s *Scheduler) {
		s.locker = l
		s.lockKey = key
	}
}

// Scheduler owns the job registry and the ticker that drives it.
type Scheduler struct {
	interval  time.Duration
	batchSize int
	store     repository.JobStore
	runner    Runner
	locker    Locker
	lockKey   string
	now       func() time.Time
	log       *zerolog.Logger

	tickMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a scheduler. If the tick interval is <= 0 it defaults to 30 seconds.
func New(cfg config.SchedulerConfig, store repository.JobStore, runner Runner, logger *zerolog.Logger, opts ...Option) *Scheduler {
	l := logger.With().Str("component", "Scheduler").Logger()
	s := &Scheduler{
		interval:  cfg.TickInterval,
		batchSize: cfg.BatchSize,
		store:     store,
		runner:    runner,
		now:       time.Now,
		log:       &l,
		done:      make(chan struct{}),
	}
	if s.interval <= 0 {
		s.interval = 30 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 10
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue registers a new pending job that becomes due after delay.
func (s *Scheduler) Enqueue(ctx context.Context, payload model.JobPayload, maxAttempts int, delay time.Duration) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("%w: nil job payload", domain.ErrInvalidArgument)
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	now := s.now()
	job := &model.Job{
		ID:          uuid.NewString(),
		Status:      model.JobStatusPending,
		MaxAttempts: maxAttempts,
		NextRunAt:   now.Add(delay),
		CreatedAt:   now,
		UpdatedAt:   now,
		Payload:     payload,
	}
	if err := s.store.Add(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s job: %w", job.Kind(), err)
	}
	metrics.IncJobEnqueued(string(job.Kind()))
	s.log.Debug().Str("job_id", job.ID).Str("kind", string(job.Kind())).Dur("delay", delay).Msg("job enqueued")
	return job.ID, nil
}

// Tick advances every due job once, concurrently, and returns how many were advanced.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.locker != nil {
		ttl := 2 * s.interval
		token, err := s.locker.TryLock(ctx, s.lockKey, ttl)
		if errors.Is(err, domain.ErrLockHeld) {
			s.log.Debug().Msg("tick skipped; lease held elsewhere")
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("tick lease: %w", err)
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), s.lockKey, token); err != nil {
				s.log.Warn().Err(err).Msg("release tick lease")
			}
		}()
		// a tick can outlive ttl when remote calls are slow; keep the lease until every
		// job in the batch has settled
		stop := make(chan struct{})
		renewed := make(chan struct{})
		go s.renewLease(ctx, token, ttl, stop, renewed)
		defer func() {
			close(stop)
			<-renewed
		}()
	}

	start := time.Now()
	defer func() { metrics.ObserveTick(time.Since(start).Seconds()) }()

	jobs, err := s.store.Due(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select due jobs: %w", err)
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *model.Job) {
			defer wg.Done()
			jobCtx := logging.WithJobID(ctx, job.ID)
			s.runner.Advance(jobCtx, job)
			s.settle(jobCtx, job)
		}(job)
	}
	wg.Wait()

	s.refreshGauge(ctx)
	return len(jobs), nil
}

func (s *Scheduler) renewLease(ctx context.Context, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := s.locker.Extend(ctx, s.lockKey, token, ttl)
			if errors.Is(err, domain.ErrLockHeld) {
				s.log.Error().Msg("tick lease lost while jobs were running")
				return
			}
			if err != nil {
				s.log.Warn().Err(err).Msg("extend tick lease")
			}
		}
	}
}

// settle writes the outcome of one step back to the registry.
func (s *Scheduler) settle(ctx context.Context, job *model.Job) {
	log := s.log.With().Str("job_id", job.ID).Str("kind", string(job.Kind())).Logger()
	if job.Terminal() {
		if err := s.store.Remove(ctx, job.ID); err != nil {
			log.Error().Err(err).Msg("remove finished job")
			return
		}
		metrics.IncJobFinished(string(job.Kind()), string(job.Status))
		log.Info().Str("status", string(job.Status)).Int("attempts", job.Attempts).Msg("job finished")
		return
	}
	if err := s.store.Save(ctx, job); err != nil {
		log.Error().Err(err).Msg("save job")
	}
}

func (s *Scheduler) refreshGauge(ctx context.Context) {
	counts, err := s.JobCount(ctx)
	if err != nil {
		return
	}
	m := make(map[string]int, len(counts))
	for k, v := range counts {
		m[string(k)] = v
	}
	metrics.SetJobsInRegistry(m)
}

// ActiveJobs returns a snapshot of every job still in the registry.
func (s *Scheduler) ActiveJobs(ctx context.Context) ([]*model.Job, error) {
	return s.store.List(ctx)
}

// JobCount returns the number of registered jobs per status.
func (s *Scheduler) JobCount(ctx context.Context) (map[model.JobStatus]int, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := map[model.JobStatus]int{
		model.JobStatusPending:    0,
		model.JobStatusProcessing: 0,
	}
	for _, j := range jobs {
		out[j.Status]++
	}
	return out, nil
}

// Start begins the tick loop in a background goroutine; calling it twice has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	if jobs, err := s.store.List(ctx); err != nil {
		s.log.Warn().Err(err).Msg("could not list registry at start")
	} else if len(jobs) > 0 {
		s.log.Info().Int("jobs", len(jobs)).Msg("recovered jobs from registry")
	}

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Int("batch", s.batchSize).Msg("scheduler started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("scheduler context cancelled; stopping")
			return
		case <-ticker.C:
			n, err := s.Tick(s.ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("tick failed")
				continue
			}
			if n > 0 {
				s.log.Debug().Int("advanced", n).Msg("tick complete")
			}
		}
	}
}

// Stop cancels the loop and waits for the in-flight tick to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("scheduler stopped")
}
