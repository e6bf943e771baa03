//go:build !integration

package web

import (
	"context"

	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/usecase"
)

// mockPipeline is a function-field stub of usecase.PipelineUseCase.
type mockPipeline struct {
	StartIntegrityFunc func(ctx context.Context, fileID string) (string, error)
	StartWordCountFunc func(ctx context.Context, fileID string) (string, error)
	RetryFunc          func(ctx context.Context, fileID string) (string, error)
	ReportURLFunc      func(ctx context.Context, fileID string) (string, error)
	Jobs               []*model.Job
	Counts             map[model.JobStatus]int
	Err                error
}

var _ usecase.PipelineUseCase = (*mockPipeline)(nil)

func (m *mockPipeline) EnqueueIntegrityCheck(ctx context.Context, in usecase.IntegrityCheckInput) (string, error) {
	return "job-1", nil
}

func (m *mockPipeline) EnqueueWordCount(ctx context.Context, submissionID, fileName, blobRef string) (string, error) {
	return "job-2", nil
}

func (m *mockPipeline) StartIntegrityCheck(ctx context.Context, fileID string) (string, error) {
	if m.StartIntegrityFunc != nil {
		return m.StartIntegrityFunc(ctx, fileID)
	}
	return "job-start", nil
}

func (m *mockPipeline) StartWordCount(ctx context.Context, fileID string) (string, error) {
	if m.StartWordCountFunc != nil {
		return m.StartWordCountFunc(ctx, fileID)
	}
	return "job-words", nil
}

func (m *mockPipeline) RetryIntegrityCheck(ctx context.Context, fileID string) (string, error) {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, fileID)
	}
	return "job-retry", nil
}

func (m *mockPipeline) ReportURL(ctx context.Context, fileID string) (string, error) {
	if m.ReportURLFunc != nil {
		return m.ReportURLFunc(ctx, fileID)
	}
	return "", nil
}

func (m *mockPipeline) ActiveJobs(ctx context.Context) ([]*model.Job, error) {
	return m.Jobs, m.Err
}

func (m *mockPipeline) JobCount(ctx context.Context) (map[model.JobStatus]int, error) {
	return m.Counts, m.Err
}
