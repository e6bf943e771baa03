package repository

import "context"

type SubmissionRepository interface {
	UpdateWordCount(ctx context.Context, submissionID string, count int) error
}
