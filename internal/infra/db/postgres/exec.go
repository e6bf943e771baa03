package postgres

import (
	"context"
	"fmt"

	"integrity-pipeline/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// execOne runs a single-row statement and maps zero affected rows to domain.ErrNotFound.
func execOne(ctx context.Context, pool *pgxpool.Pool, op, sql string, args ...interface{}) error {
	ct, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
