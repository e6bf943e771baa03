//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/adapter"
)

func TestConsentResolver_Ensure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	requireEULA := func(ctx context.Context) (*adapter.Features, error) {
		return &adapter.Features{RequireEULA: true}, nil
	}

	newResolver := func(svc *mockIntegrity, repo *memConsentRepo) *ConsentResolver {
		r := NewConsentResolver(svc, repo, "v1beta", "en-US", newTestLogger())
		r.now = func() time.Time { return now }
		return r
	}

	t.Run("tenant without consent requirement", func(t *testing.T) {
		svc := &mockIntegrity{}
		if acc := newResolver(svc, newMemConsentRepo()).Ensure(ctx, "user-1"); acc != nil {
			t.Fatalf("expected nil acceptance, got %+v", acc)
		}
		if svc.count("latest_eula") != 0 {
			t.Error("latest eula should not be fetched")
		}
	})

	t.Run("not yet accepted is accepted and recorded", func(t *testing.T) {
		svc := &mockIntegrity{FeaturesFunc: requireEULA}
		repo := newMemConsentRepo()
		acc := newResolver(svc, repo).Ensure(ctx, "user-1")
		if acc == nil || acc.Version != "v2" || !acc.AcceptedAt.Equal(now) || acc.Language != "en-US" {
			t.Fatalf("unexpected acceptance %+v", acc)
		}
		if svc.count("accept_eula") != 1 {
			t.Errorf("expected one remote acceptance, calls=%v", svc.Calls())
		}
		if _, err := repo.FindAcceptance(ctx, "user-1", "v2"); err != nil {
			t.Errorf("acceptance not recorded locally: %v", err)
		}
	})

	t.Run("local record short-circuits remote lookup", func(t *testing.T) {
		svc := &mockIntegrity{FeaturesFunc: requireEULA}
		repo := newMemConsentRepo()
		earlier := now.Add(-24 * time.Hour)
		_ = repo.SaveAcceptance(ctx, &model.ConsentAcceptance{UserID: "user-1", Version: "v2", AcceptedAt: earlier, Language: "fr-FR"})

		acc := newResolver(svc, repo).Ensure(ctx, "user-1")
		if acc == nil || !acc.AcceptedAt.Equal(earlier) || acc.Language != "fr-FR" {
			t.Fatalf("expected stored acceptance, got %+v", acc)
		}
		if svc.count("get_eula_acceptance") != 0 || svc.count("accept_eula") != 0 {
			t.Errorf("unexpected remote calls %v", svc.Calls())
		}
	})

	t.Run("remote acceptance is reused", func(t *testing.T) {
		remoteAt := now.Add(-time.Hour)
		svc := &mockIntegrity{
			FeaturesFunc: requireEULA,
			GetEULAAcceptanceFunc: func(ctx context.Context, version, userID string) (*adapter.EULAAcceptance, error) {
				return &adapter.EULAAcceptance{UserID: userID, Version: version, AcceptedAt: remoteAt, Language: "en-US"}, nil
			},
		}
		acc := newResolver(svc, newMemConsentRepo()).Ensure(ctx, "user-1")
		if acc == nil || !acc.AcceptedAt.Equal(remoteAt) {
			t.Fatalf("expected remote acceptance, got %+v", acc)
		}
		if svc.count("accept_eula") != 0 {
			t.Error("already accepted; must not accept again")
		}
	})

	t.Run("any failure falls back", func(t *testing.T) {
		svc := &mockIntegrity{
			FeaturesFunc: requireEULA,
			LatestEULAFunc: func(ctx context.Context) (*adapter.EULAVersion, error) {
				return nil, errors.New("eula endpoint down")
			},
		}
		acc := newResolver(svc, newMemConsentRepo()).Ensure(ctx, "user-1")
		if acc == nil || acc.Version != "v1beta" || acc.Language != "en-US" || !acc.AcceptedAt.Equal(now) {
			t.Fatalf("expected fallback acceptance, got %+v", acc)
		}
	})

	t.Run("features failure falls back", func(t *testing.T) {
		svc := &mockIntegrity{FeaturesFunc: func(ctx context.Context) (*adapter.Features, error) {
			return nil, errors.New("timeout")
		}}
		if acc := newResolver(svc, newMemConsentRepo()).Ensure(ctx, "user-1"); acc == nil || acc.Version != "v1beta" {
			t.Fatalf("expected fallback acceptance, got %+v", acc)
		}
	})
}
