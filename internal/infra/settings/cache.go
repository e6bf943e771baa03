package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"integrity-pipeline/internal/domain"
	"integrity-pipeline/internal/domain/model"
	"integrity-pipeline/internal/domain/ports/repository"
	"integrity-pipeline/internal/infra/metrics"

	"github.com/rs/zerolog"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is a string cache with a single fixed TTL. Expiry is checked lazily on read.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{ttl: ttl, entries: make(map[string]entry), now: time.Now}
}

// WithClock swaps the time source; used by tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *Cache) Delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// Provider resolves the integrity service bundle through the cache, loading misses
// from the configuration store in one call.
type Provider struct {
	cache *Cache
	repo  repository.SettingRepository
	log   *zerolog.Logger
}

func NewProvider(cache *Cache, repo repository.SettingRepository, logger *zerolog.Logger) *Provider {
	l := logger.With().Str("component", "SettingsProvider").Logger()
	return &Provider{cache: cache, repo: repo, log: &l}
}

func (p *Provider) IntegritySettings(ctx context.Context) (*model.IntegritySettings, error) {
	values := make(map[string]string, len(model.IntegritySettingKeys))
	missing := false
	for _, key := range model.IntegritySettingKeys {
		v, ok := p.cache.Get(key)
		if !ok {
			missing = true
			break
		}
		values[key] = v
	}
	if !missing {
		metrics.IncCacheRequest("settings", "hit")
		return bundle(values)
	}

	metrics.IncCacheRequest("settings", "miss")
	all, err := p.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	// absent keys are cached as "" so an unset optional key does not force a reload
	// on every read
	for _, key := range model.IntegritySettingKeys {
		v := all[key]
		p.cache.Set(key, v)
		values[key] = v
	}
	p.log.Debug().Int("keys", len(all)).Msg("settings cache refilled")
	return bundle(values)
}

// Refresh evicts the bundle keys and loads them again.
func (p *Provider) Refresh(ctx context.Context) (*model.IntegritySettings, error) {
	p.cache.Delete(model.IntegritySettingKeys...)
	return p.IntegritySettings(ctx)
}

func bundle(values map[string]string) (*model.IntegritySettings, error) {
	s := &model.IntegritySettings{
		APIURL:             values[model.SettingIntegrityAPIURL],
		APIKey:             values[model.SettingIntegrityAPIKey],
		IntegrationName:    values[model.SettingIntegrityIntegrationName],
		IntegrationVersion: values[model.SettingIntegrityIntegrationVersion],
	}
	if s.APIURL == "" || s.APIKey == "" {
		return nil, domain.ErrSettingsIncomplete
	}
	return s, nil
}
