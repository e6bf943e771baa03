// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// AdminConfig drives the diagnostic HTTP surface.
type AdminConfig struct {
	Port        int    `yaml:"port"`
	APIKey      string `yaml:"api_key"`
	TokenSecret string `yaml:"token_secret"` // signs time-limited artifact URLs
	PublicURL   string `yaml:"public_url"`   // base used when building artifact URLs
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Backend   string `yaml:"backend"` // memory | redis
	KeyPrefix string `yaml:"key_prefix"`
}

type SchedulerConfig struct {
	TickInterval         time.Duration `yaml:"tick_interval"`
	BatchSize            int           `yaml:"batch_size"`
	InitialDelay         time.Duration `yaml:"initial_delay"`
	PollDelay            time.Duration `yaml:"poll_delay"`
	RetryBaseDelay       time.Duration `yaml:"retry_base_delay"`
	IntegrityMaxAttempts int           `yaml:"integrity_max_attempts"`
	WordCountMaxAttempts int           `yaml:"word_count_max_attempts"`
}

type IntegrityConfig struct {
	SettingsTTL             time.Duration `yaml:"settings_ttl"`
	HTTPTimeout             time.Duration `yaml:"http_timeout"`
	SearchRepositories      []string      `yaml:"search_repositories"`
	Priority                string        `yaml:"priority"`
	PDFLocale               string        `yaml:"pdf_locale"`
	ConsentFallbackVersion  string        `yaml:"consent_fallback_version"`
	ConsentFallbackLanguage string        `yaml:"consent_fallback_language"`
}

type StorageConfig struct {
	Backend      string        `yaml:"backend"` // fs | memory
	Root         string        `yaml:"root"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
}

type NotifyConfig struct {
	MarkerWebhookURL string        `yaml:"marker_webhook_url"`
	Timeout          time.Duration `yaml:"timeout"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Integrity IntegrityConfig `yaml:"integrity"`
	Storage   StorageConfig   `yaml:"storage"`
	Notify    NotifyConfig    `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML, applies defaults and validates the result.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	switch cfg.Queue.Backend {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, errors.New("redis.addr is required when queue.backend is redis")
		}
	default:
		return nil, fmt.Errorf("queue.backend %q is not supported", cfg.Queue.Backend)
	}
	switch cfg.Storage.Backend {
	case "fs", "memory":
	default:
		return nil, fmt.Errorf("storage.backend %q is not supported", cfg.Storage.Backend)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8081
	}
	if cfg.Admin.PublicURL == "" {
		cfg.Admin.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Admin.Port)
	}
	cfg.Admin.PublicURL = strings.TrimRight(cfg.Admin.PublicURL, "/")
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Queue.Backend = strings.ToLower(strings.TrimSpace(cfg.Queue.Backend))
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = "memory"
	}
	if cfg.Queue.KeyPrefix == "" {
		cfg.Queue.KeyPrefix = "integrity"
	}

	s := &cfg.Scheduler
	s.TickInterval = orDuration(s.TickInterval, 30*time.Second)
	s.InitialDelay = orDuration(s.InitialDelay, 5*time.Second)
	s.PollDelay = orDuration(s.PollDelay, time.Minute)
	s.RetryBaseDelay = orDuration(s.RetryBaseDelay, time.Minute)
	if s.BatchSize <= 0 {
		s.BatchSize = 10
	}
	if s.IntegrityMaxAttempts <= 0 {
		s.IntegrityMaxAttempts = 5
	}
	if s.WordCountMaxAttempts <= 0 {
		s.WordCountMaxAttempts = 3
	}

	in := &cfg.Integrity
	in.SettingsTTL = orDuration(in.SettingsTTL, 5*time.Minute)
	in.HTTPTimeout = orDuration(in.HTTPTimeout, 2*time.Minute)
	if len(in.SearchRepositories) == 0 {
		in.SearchRepositories = []string{"INTERNET", "SUBMITTED_WORK", "PUBLICATION", "CROSSREF", "CROSSREF_POSTED_CONTENT"}
	}
	if in.Priority == "" {
		in.Priority = "LOW"
	}
	if in.PDFLocale == "" {
		in.PDFLocale = "en-US"
	}
	if in.ConsentFallbackVersion == "" {
		in.ConsentFallbackVersion = "v1beta"
	}
	if in.ConsentFallbackLanguage == "" {
		in.ConsentFallbackLanguage = "en-US"
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "fs"
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = ".data/blobs"
	}
	cfg.Storage.SignedURLTTL = orDuration(cfg.Storage.SignedURLTTL, 15*time.Minute)
	cfg.Notify.Timeout = orDuration(cfg.Notify.Timeout, 10*time.Second)
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
