package repository

import (
	"context"

	"integrity-pipeline/internal/domain/model"
)

type ConsentRepository interface {
	// FindAcceptance returns domain.ErrNotFound when the user never accepted version.
	FindAcceptance(ctx context.Context, userID, version string) (*model.ConsentAcceptance, error)
	SaveAcceptance(ctx context.Context, a *model.ConsentAcceptance) error
}
