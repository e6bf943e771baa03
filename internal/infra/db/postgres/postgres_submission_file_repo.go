package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.SubmissionFileRepository = (*PostgresSubmissionFileRepo)(nil)

type PostgresSubmissionFileRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubmissionFileRepo(pool *pgxpool.Pool) *PostgresSubmissionFileRepo {
	return &PostgresSubmissionFileRepo{pool: pool}
}

func (r *PostgresSubmissionFileRepo) FindByID(ctx context.Context, id string) (*model.SubmissionFile, error) {
	const sql = `
SELECT f.id, f.submission_id, f.file_name, f.blob_ref, f.role,
       s.submitter_email, s.submitter_id, s.assignment_id, s.course_id,
       f.integrity_status, f.remote_submission_id, f.similarity_score, f.processed_at, f.integrity_error,
       f.pdf_id, f.pdf_status, f.pdf_ref, f.pdf_generated_at
  FROM submission_files f
  JOIN submissions s ON s.id = f.submission_id
 WHERE f.id = $1;
`
	var (
		f      model.SubmissionFile
		role   string
		status string
		pdfSt  string
	)
	err := r.pool.QueryRow(ctx, sql, id).Scan(
		&f.ID, &f.SubmissionID, &f.FileName, &f.BlobRef, &role,
		&f.SubmitterEmail, &f.SubmitterID, &f.AssignmentID, &f.CourseID,
		&status, &f.RemoteSubmissionID, &f.SimilarityScore, &f.ProcessedAt, &f.IntegrityError,
		&f.PDFID, &pdfSt, &f.PDFRef, &f.PDFGeneratedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID submission file: %w", err)
	}
	f.Role = model.FileRole(role)
	f.IntegrityStatus = model.IntegrityStatus(status)
	f.PDFStatus = model.PDFStatus(pdfSt)
	return &f, nil
}

func (r *PostgresSubmissionFileRepo) UpdateIntegrityStatus(ctx context.Context, id string, status model.IntegrityStatus, errMsg string) error {
	const sql = `
UPDATE submission_files
   SET integrity_status = $2,
       integrity_error  = $3,
       updated_at       = now()
 WHERE id = $1;
`
	return execOne(ctx, r.pool, "UpdateIntegrityStatus", sql, id, string(status), errMsg)
}

func (r *PostgresSubmissionFileRepo) SetRemoteSubmission(ctx context.Context, id, remoteID string) error {
	const sql = `
UPDATE submission_files
   SET remote_submission_id = $2,
       integrity_status     = 'processing',
       integrity_error      = '',
       updated_at           = now()
 WHERE id = $1;
`
	return execOne(ctx, r.pool, "SetRemoteSubmission", sql, id, remoteID)
}

func (r *PostgresSubmissionFileRepo) SaveSimilarity(ctx context.Context, id string, score float64, processedAt time.Time) error {
	const sql = `
UPDATE submission_files
   SET similarity_score = $2,
       processed_at     = $3,
       integrity_status = 'complete',
       integrity_error  = '',
       updated_at       = now()
 WHERE id = $1;
`
	return execOne(ctx, r.pool, "SaveSimilarity", sql, id, score, processedAt)
}

func (r *PostgresSubmissionFileRepo) SavePDFState(ctx context.Context, id, pdfID string, status model.PDFStatus) error {
	const sql = `
UPDATE submission_files
   SET pdf_id     = CASE WHEN $2 = '' THEN pdf_id ELSE $2 END,
       pdf_status = $3,
       updated_at = now()
 WHERE id = $1;
`
	return execOne(ctx, r.pool, "SavePDFState", sql, id, pdfID, string(status))
}

func (r *PostgresSubmissionFileRepo) SavePDFArtifact(ctx context.Context, id, ref string, generatedAt time.Time) error {
	const sql = `
UPDATE submission_files
   SET pdf_ref          = $2,
       pdf_generated_at = $3,
       pdf_status       = 'complete',
       updated_at       = now()
 WHERE id = $1;
`
	return execOne(ctx, r.pool, "SavePDFArtifact", sql, id, ref, generatedAt)
}
