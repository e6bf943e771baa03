package postgres

import (
	"context"

	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.SubmissionRepository = (*PostgresSubmissionRepo)(nil)

type PostgresSubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubmissionRepo(pool *pgxpool.Pool) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{pool: pool}
}

func (r *PostgresSubmissionRepo) UpdateWordCount(ctx context.Context, submissionID string, count int) error {
	const sql = `UPDATE submissions SET word_count = $2, updated_at = now() WHERE id = $1;`
	return execOne(ctx, r.pool, "UpdateWordCount", sql, submissionID, count)
}
