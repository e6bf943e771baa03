package postgres

import (
	"context"
	"fmt"

	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.SettingRepository = (*PostgresSettingRepo)(nil)

type PostgresSettingRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSettingRepo(pool *pgxpool.Pool) *PostgresSettingRepo {
	return &PostgresSettingRepo{pool: pool}
}

func (r *PostgresSettingRepo) ListAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings;`)
	if err != nil {
		return nil, fmt.Errorf("ListAll settings: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Upsert writes one setting; used by the seed command.
func (r *PostgresSettingRepo) Upsert(ctx context.Context, key, value string) error {
	const sql = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
  SET value      = EXCLUDED.value,
      updated_at = now();
`
	if _, err := r.pool.Exec(ctx, sql, key, value); err != nil {
		return fmt.Errorf("Upsert setting %s: %w", key, err)
	}
	return nil
}
