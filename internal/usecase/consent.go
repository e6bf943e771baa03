package usecase

import (
	"context"
	"errors"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// ConsentResolver makes sure a user's EULA acceptance exists before a remote submission
// is created. It never fails: any error yields the configured fallback acceptance.
type ConsentResolver struct {
	svc              adapter.IntegrityService
	repo             repository.ConsentRepository
	fallbackVersion  string
	fallbackLanguage string
	now              func() time.Time
	log              *zerolog.Logger
}

func NewConsentResolver(svc adapter.IntegrityService, repo repository.ConsentRepository, fallbackVersion, fallbackLanguage string, logger *zerolog.Logger) *ConsentResolver {
	l := logger.With().Str("component", "ConsentResolver").Logger()
	return &ConsentResolver{
		svc:              svc,
		repo:             repo,
		fallbackVersion:  fallbackVersion,
		fallbackLanguage: fallbackLanguage,
		now:              time.Now,
		log:              &l,
	}
}

// Ensure returns the acceptance to attach to a new submission, or nil when the tenant
// does not require one.
func (c *ConsentResolver) Ensure(ctx context.Context, userID string) *adapter.EULAAcceptance {
	acc, err := c.ensure(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Str("fallback_version", c.fallbackVersion).
			Msg("consent lookup failed; using fallback acceptance")
		return &adapter.EULAAcceptance{
			UserID:     userID,
			Version:    c.fallbackVersion,
			AcceptedAt: c.now().UTC(),
			Language:   c.fallbackLanguage,
		}
	}
	return acc
}

func (c *ConsentResolver) ensure(ctx context.Context, userID string) (*adapter.EULAAcceptance, error) {
	features, err := c.svc.Features(ctx)
	if err != nil {
		return nil, err
	}
	if !features.RequireEULA {
		return nil, nil
	}

	latest, err := c.svc.LatestEULA(ctx)
	if err != nil {
		return nil, err
	}
	version := latest.Version

	local, err := c.repo.FindAcceptance(ctx, userID, version)
	switch {
	case err == nil:
		return &adapter.EULAAcceptance{UserID: userID, Version: local.Version, AcceptedAt: local.AcceptedAt, Language: local.Language}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	remote, err := c.svc.GetEULAAcceptance(ctx, version, userID)
	if err != nil && !adapter.IsNotFound(err) {
		return nil, err
	}
	if remote == nil {
		remote, err = c.svc.AcceptEULA(ctx, adapter.EULAAcceptance{
			UserID:     userID,
			Version:    version,
			AcceptedAt: c.now().UTC(),
			Language:   c.pickLanguage(latest.AvailableLanguages),
		})
		if err != nil {
			return nil, err
		}
		c.log.Info().Str("user_id", userID).Str("version", version).Msg("consent accepted on behalf of user")
	}

	if err := c.repo.SaveAcceptance(ctx, &model.ConsentAcceptance{
		UserID: userID, Version: remote.Version, AcceptedAt: remote.AcceptedAt, Language: remote.Language,
	}); err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("could not record consent locally")
	}
	return remote, nil
}

func (c *ConsentResolver) pickLanguage(available []string) string {
	for _, l := range available {
		if l == c.fallbackLanguage {
			return l
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return c.fallbackLanguage
}
