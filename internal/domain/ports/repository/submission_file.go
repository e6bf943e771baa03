package repository

import (
	"context"
	"time"

	"integrity-pipeline/internal/domain/model"
)

// SubmissionFileRepository is the port for the integrity fields of a submission file.
// Every mutator returns domain.ErrNotFound when the file does not exist.
type SubmissionFileRepository interface {
	FindByID(ctx context.Context, id string) (*model.SubmissionFile, error)
	// UpdateIntegrityStatus sets the status and the error message (empty clears it).
	UpdateIntegrityStatus(ctx context.Context, id string, status model.IntegrityStatus, errMsg string) error
	// SetRemoteSubmission records the remote id and moves the file to processing.
	SetRemoteSubmission(ctx context.Context, id, remoteID string) error
	// SaveSimilarity stores the overall score and marks the file complete.
	SaveSimilarity(ctx context.Context, id string, score float64, processedAt time.Time) error
	SavePDFState(ctx context.Context, id, pdfID string, status model.PDFStatus) error
	// SavePDFArtifact stores the exact blob reference of the downloaded report.
	SavePDFArtifact(ctx context.Context, id, ref string, generatedAt time.Time) error
}
