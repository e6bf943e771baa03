package postgres

import (
	"context"
	"errors"
	"fmt"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.ConsentRepository = (*PostgresConsentRepo)(nil)

type PostgresConsentRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresConsentRepo(pool *pgxpool.Pool) *PostgresConsentRepo {
	return &PostgresConsentRepo{pool: pool}
}

func (r *PostgresConsentRepo) FindAcceptance(ctx context.Context, userID, version string) (*model.ConsentAcceptance, error) {
	const sql = `
SELECT user_id, version, accepted_at, language
  FROM consent_acceptances
 WHERE user_id = $1 AND version = $2;
`
	var a model.ConsentAcceptance
	if err := r.pool.QueryRow(ctx, sql, userID, version).Scan(&a.UserID, &a.Version, &a.AcceptedAt, &a.Language); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindAcceptance: %w", err)
	}
	return &a, nil
}

func (r *PostgresConsentRepo) SaveAcceptance(ctx context.Context, a *model.ConsentAcceptance) error {
	const sql = `
INSERT INTO consent_acceptances (user_id, version, accepted_at, language)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, version) DO UPDATE
  SET accepted_at = EXCLUDED.accepted_at,
      language    = EXCLUDED.language;
`
	if _, err := r.pool.Exec(ctx, sql, a.UserID, a.Version, a.AcceptedAt, a.Language); err != nil {
		return fmt.Errorf("SaveAcceptance: %w", err)
	}
	return nil
}
