package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/domain/ports/repository"
	"integrity-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// JobRunnerDeps groups the collaborators the job kinds need.
type JobRunnerDeps struct {
	Files       repository.SubmissionFileRepository
	Submissions repository.SubmissionRepository
	Blobs       adapter.BlobStore
	Integrity   adapter.IntegrityService
	Consent     *ConsentResolver
	Notifier    adapter.MarkerNotifier
	Extractor   adapter.TextExtractor
}

// JobRunner is the single dispatch point from a job to its state machine, and owns the
// failure policy shared by every kind.
type JobRunner struct {
	files     repository.SubmissionFileRepository
	integrity *integrityJob
	words     *wordCountJob
	retryBase time.Duration
	now       func() time.Time
	log       *zerolog.Logger
}

func NewJobRunner(deps JobRunnerDeps, opts IntegrityOptions, retryBase time.Duration, logger *zerolog.Logger) *JobRunner {
	l := logger.With().Str("component", "JobRunner").Logger()
	if retryBase <= 0 {
		retryBase = time.Minute
	}
	if opts.PollDelay <= 0 {
		opts.PollDelay = time.Minute
	}
	r := &JobRunner{
		files:     deps.Files,
		retryBase: retryBase,
		now:       time.Now,
		log:       &l,
	}
	r.integrity = &integrityJob{
		files:    deps.Files,
		blobs:    deps.Blobs,
		svc:      deps.Integrity,
		consent:  deps.Consent,
		notifier: deps.Notifier,
		opts:     opts,
		now:      r.clock,
		log:      &l,
	}
	r.words = &wordCountJob{
		submissions: deps.Submissions,
		blobs:       deps.Blobs,
		extractor:   deps.Extractor,
		now:         r.clock,
		log:         &l,
	}
	return r
}

// WithClock replaces the time source, for tests.
func (r *JobRunner) WithClock(now func() time.Time) *JobRunner {
	r.now = now
	if r.integrity.consent != nil {
		r.integrity.consent.now = now
	}
	return r
}

func (r *JobRunner) clock() time.Time { return r.now() }

// Advance runs one step of job and applies the retry policy to any failure.
func (r *JobRunner) Advance(ctx context.Context, job *model.Job) {
	stage := stageOf(job)
	log := r.log.With().Str("job_id", job.ID).Str("kind", string(job.Kind())).Str("stage", stage).Logger()

	err := r.dispatch(ctx, job)
	if err == nil {
		metrics.IncJobStep(string(job.Kind()), stage, "ok")
		return
	}
	metrics.IncJobStep(string(job.Kind()), stage, "error")

	if errors.Is(err, domain.ErrUnknownJobKind) {
		job.Status = model.JobStatusFailed
		job.LastError = err.Error()
		log.Error().Err(err).Msg("dropping job with unknown payload")
		return
	}

	if errors.Is(err, domain.ErrUnsupportedFormat) {
		// no retry can change the file extension
		job.Status = model.JobStatusFailed
		job.LastError = err.Error()
		job.UpdatedAt = r.now()
		log.Debug().Err(err).Msg("word count skipped for unsupported format")
		return
	}

	if !job.RecordFailure(err, r.retryBase, r.now()) {
		log.Warn().Err(err).Int("attempt", job.Attempts).Time("next_run_at", job.NextRunAt).Msg("job step failed; will retry")
		return
	}

	switch p := job.Payload.(type) {
	case *model.IntegrityCheckPayload:
		log.Error().Err(err).Str("file_id", p.FileID).Int("attempt", job.Attempts).Msg("integrity check gave up")
		if perr := r.files.UpdateIntegrityStatus(ctx, p.FileID, model.IntegrityError, err.Error()); perr != nil {
			log.Error().Err(perr).Str("file_id", p.FileID).Msg("could not persist integrity error")
		}
	case *model.WordCountPayload:
		log.Debug().Err(err).Str("submission_id", p.SubmissionID).Msg("word count abandoned")
	}
}

func (r *JobRunner) dispatch(ctx context.Context, job *model.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job step panicked: %v", rec)
		}
	}()

	switch p := job.Payload.(type) {
	case *model.IntegrityCheckPayload:
		return r.integrity.step(ctx, job, p)
	case *model.WordCountPayload:
		return r.words.step(ctx, job, p)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownJobKind, job.Payload)
	}
}

func stageOf(job *model.Job) string {
	switch p := job.Payload.(type) {
	case *model.IntegrityCheckPayload:
		if p.Stage == "" {
			return string(model.StageSubmit)
		}
		return string(p.Stage)
	case *model.WordCountPayload:
		return "count"
	default:
		return "unknown"
	}
}
