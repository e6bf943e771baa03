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

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PipelineUseCase = (*pipelineUC)(nil)

// IntegrityCheckInput is what the upload flow knows about a freshly stored file.
type IntegrityCheckInput struct {
	FileID         string
	SubmissionID   string
	FileName       string
	BlobRef        string
	SubmitterEmail string
	SubmitterID    string
	AssignmentID   string
	CourseID       string
}

type PipelineUseCase interface {
	EnqueueIntegrityCheck(ctx context.Context, in IntegrityCheckInput) (string, error)
	EnqueueWordCount(ctx context.Context, submissionID, fileName, blobRef string) (string, error)
	// StartIntegrityCheck enqueues the first check of a stored file from its own row.
	StartIntegrityCheck(ctx context.Context, fileID string) (string, error)
	// StartWordCount enqueues a word count of a stored file for its parent submission.
	StartWordCount(ctx context.Context, fileID string) (string, error)
	// RetryIntegrityCheck re-enqueues a file whose previous check ended in error.
	RetryIntegrityCheck(ctx context.Context, fileID string) (string, error)
	// ReportURL returns a time-limited URL for the stored similarity PDF.
	ReportURL(ctx context.Context, fileID string) (string, error)
	ActiveJobs(ctx context.Context) ([]*model.Job, error)
	JobCount(ctx context.Context) (map[model.JobStatus]int, error)
}

// JobScheduler is the part of the scheduler the use cases need.
type JobScheduler interface {
	Enqueue(ctx context.Context, payload model.JobPayload, maxAttempts int, delay time.Duration) (string, error)
	ActiveJobs(ctx context.Context) ([]*model.Job, error)
	JobCount(ctx context.Context) (map[model.JobStatus]int, error)
}

// PipelineLimits bound each job kind.
type PipelineLimits struct {
	InitialDelay         time.Duration
	IntegrityMaxAttempts int
	WordCountMaxAttempts int
	SignedURLTTL         time.Duration
}

type pipelineUC struct {
	sched  JobScheduler
	files  repository.SubmissionFileRepository
	blobs  adapter.BlobStore
	limits PipelineLimits
	log    *zerolog.Logger
}

func NewPipelineUseCase(sched JobScheduler, files repository.SubmissionFileRepository, blobs adapter.BlobStore, limits PipelineLimits, logger *zerolog.Logger) *pipelineUC {
	l := logger.With().Str("component", "PipelineUC").Logger()
	if limits.SignedURLTTL <= 0 {
		limits.SignedURLTTL = 15 * time.Minute
	}
	return &pipelineUC{sched: sched, files: files, blobs: blobs, limits: limits, log: &l}
}

func (u *pipelineUC) EnqueueIntegrityCheck(ctx context.Context, in IntegrityCheckInput) (string, error) {
	if in.FileID == "" || in.SubmissionID == "" || in.FileName == "" || in.BlobRef == "" || in.SubmitterEmail == "" {
		return "", fmt.Errorf("%w: file id, submission id, file name, blob ref and submitter email are required", domain.ErrInvalidArgument)
	}
	payload := &model.IntegrityCheckPayload{
		FileID:         in.FileID,
		SubmissionID:   in.SubmissionID,
		FileName:       in.FileName,
		BlobRef:        in.BlobRef,
		SubmitterEmail: in.SubmitterEmail,
		SubmitterID:    in.SubmitterID,
		AssignmentID:   in.AssignmentID,
		CourseID:       in.CourseID,
		Stage:          model.StageSubmit,
	}
	id, err := u.sched.Enqueue(ctx, payload, u.limits.IntegrityMaxAttempts, u.limits.InitialDelay)
	if err != nil {
		return "", err
	}
	if err := u.files.UpdateIntegrityStatus(ctx, in.FileID, model.IntegrityPending, ""); err != nil {
		u.log.Warn().Err(err).Str("file_id", in.FileID).Msg("could not mark file pending")
	}
	u.log.Info().Str("job_id", id).Str("file_id", in.FileID).Msg("integrity check enqueued")
	return id, nil
}

func (u *pipelineUC) EnqueueWordCount(ctx context.Context, submissionID, fileName, blobRef string) (string, error) {
	if submissionID == "" || fileName == "" || blobRef == "" {
		return "", fmt.Errorf("%w: submission id, file name and blob ref are required", domain.ErrInvalidArgument)
	}
	payload := &model.WordCountPayload{SubmissionID: submissionID, FileName: fileName, BlobRef: blobRef}
	return u.sched.Enqueue(ctx, payload, u.limits.WordCountMaxAttempts, u.limits.InitialDelay)
}

func (u *pipelineUC) StartIntegrityCheck(ctx context.Context, fileID string) (string, error) {
	f, err := u.files.FindByID(ctx, fileID)
	if err != nil {
		return "", err
	}
	if f.IntegrityStatus != model.IntegrityNotSubmitted {
		return "", fmt.Errorf("%w: file %s is %s", domain.ErrInvalidArgument, fileID, f.IntegrityStatus)
	}
	return u.EnqueueIntegrityCheck(ctx, inputFromFile(f))
}

func (u *pipelineUC) StartWordCount(ctx context.Context, fileID string) (string, error) {
	f, err := u.files.FindByID(ctx, fileID)
	if err != nil {
		return "", err
	}
	return u.EnqueueWordCount(ctx, f.SubmissionID, f.FileName, f.BlobRef)
}

func inputFromFile(f *model.SubmissionFile) IntegrityCheckInput {
	return IntegrityCheckInput{
		FileID:         f.ID,
		SubmissionID:   f.SubmissionID,
		FileName:       f.FileName,
		BlobRef:        f.BlobRef,
		SubmitterEmail: f.SubmitterEmail,
		SubmitterID:    f.SubmitterID,
		AssignmentID:   f.AssignmentID,
		CourseID:       f.CourseID,
	}
}

func (u *pipelineUC) RetryIntegrityCheck(ctx context.Context, fileID string) (string, error) {
	f, err := u.files.FindByID(ctx, fileID)
	if err != nil {
		return "", err
	}
	if f.Role == model.FileRoleMarkerFeedback {
		return "", fmt.Errorf("%w: file %s is marker feedback", domain.ErrInvalidArgument, fileID)
	}
	if f.IntegrityStatus != model.IntegrityError && f.IntegrityStatus != model.IntegrityNotSubmitted {
		return "", fmt.Errorf("%w: file %s is %s", domain.ErrInvalidArgument, fileID, f.IntegrityStatus)
	}
	return u.EnqueueIntegrityCheck(ctx, inputFromFile(f))
}

func (u *pipelineUC) ReportURL(ctx context.Context, fileID string) (string, error) {
	f, err := u.files.FindByID(ctx, fileID)
	if err != nil {
		return "", err
	}
	ref := f.PDFRef
	if ref == "" {
		// rows written before the reference column existed
		refs, err := u.blobs.List(ctx, reportPrefix(fileID))
		if err != nil {
			return "", err
		}
		if len(refs) == 0 {
			return "", domain.ErrNoArtifact
		}
		ref = refs[len(refs)-1]
	}
	url, err := u.blobs.SignedURL(ctx, ref, u.limits.SignedURLTTL)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrNoArtifact
	}
	return url, err
}

func (u *pipelineUC) ActiveJobs(ctx context.Context) ([]*model.Job, error) {
	return u.sched.ActiveJobs(ctx)
}

func (u *pipelineUC) JobCount(ctx context.Context) (map[model.JobStatus]int, error) {
	return u.sched.JobCount(ctx)
}
