//go:build !integration

package config

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		cfg, err := Parse([]byte("database:\n  url: postgres://localhost/test\n"), false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Queue.Backend != "memory" {
			t.Errorf("expected memory queue backend, got %q", cfg.Queue.Backend)
		}
		if cfg.Scheduler.PollDelay != time.Minute {
			t.Errorf("expected 1m poll delay, got %s", cfg.Scheduler.PollDelay)
		}
		if cfg.Scheduler.IntegrityMaxAttempts != 5 || cfg.Scheduler.WordCountMaxAttempts != 3 {
			t.Errorf("unexpected attempt defaults: %+v", cfg.Scheduler)
		}
		if cfg.Integrity.SettingsTTL != 5*time.Minute {
			t.Errorf("expected 5m settings ttl, got %s", cfg.Integrity.SettingsTTL)
		}
		if len(cfg.Integrity.SearchRepositories) == 0 {
			t.Error("expected default search repositories")
		}
	})

	t.Run("decodes durations", func(t *testing.T) {
		raw := `
database:
  url: postgres://localhost/test
scheduler:
  tick_interval: 10s
  retry_base_delay: 2m
`
		cfg, err := Parse([]byte(raw), true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Scheduler.TickInterval != 10*time.Second {
			t.Errorf("expected 10s tick, got %s", cfg.Scheduler.TickInterval)
		}
		if cfg.Scheduler.RetryBaseDelay != 2*time.Minute {
			t.Errorf("expected 2m retry base, got %s", cfg.Scheduler.RetryBaseDelay)
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev runtime flag")
		}
	})

	t.Run("requires database url", func(t *testing.T) {
		if _, err := Parse([]byte("log:\n  level: debug\n"), false); err == nil {
			t.Fatal("expected error for missing database.url")
		}
	})

	t.Run("requires redis addr for redis queue", func(t *testing.T) {
		raw := "database:\n  url: postgres://x\nqueue:\n  backend: redis\n"
		if _, err := Parse([]byte(raw), false); err == nil {
			t.Fatal("expected error for missing redis.addr")
		}
	})
}
