// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"integrity-pipeline/internal/config"
	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/domain/ports/repository"
	"integrity-pipeline/internal/infra/adapters/integrity"
	"integrity-pipeline/internal/infra/adapters/notify"
	"integrity-pipeline/internal/infra/blob"
	pg "integrity-pipeline/internal/infra/db/postgres"
	"integrity-pipeline/internal/infra/extract"
	"integrity-pipeline/internal/infra/logging"
	"integrity-pipeline/internal/infra/metrics"
	red "integrity-pipeline/internal/infra/redis"
	"integrity-pipeline/internal/infra/scheduler"
	"integrity-pipeline/internal/infra/settings"
	"integrity-pipeline/internal/infra/web"
	"integrity-pipeline/internal/usecase"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	go reportPoolStats(ctx, pool)

	// ---- Repositories ----
	fileRepo := pg.NewPostgresSubmissionFileRepo(pool)
	submissionRepo := pg.NewPostgresSubmissionRepo(pool)
	consentRepo := pg.NewPostgresConsentRepo(pool)
	settingRepo := pg.NewPostgresSettingRepo(pool)

	// ---- Integrity service ----
	settingsProvider := settings.NewProvider(settings.NewCache(cfg.Integrity.SettingsTTL), settingRepo, logger)
	integrityClient := integrity.NewClient(settingsProvider, &http.Client{Timeout: cfg.Integrity.HTTPTimeout}, logger)

	// ---- Artifacts ----
	if cfg.Admin.TokenSecret == "" {
		logger.Warn().Msg("admin.token_secret not set; using a dev secret for artifact URLs (INSECURE)")
		cfg.Admin.TokenSecret = "dev-artifact-secret-change-me"
	}
	signer := blob.NewSigner(cfg.Admin.TokenSecret)
	var blobs adapter.BlobStore
	switch cfg.Storage.Backend {
	case "memory":
		blobs = blob.NewMemoryStore(cfg.Admin.PublicURL, signer)
	default:
		fsStore, err := blob.NewFSStore(cfg.Storage.Root, cfg.Admin.PublicURL, signer)
		if err != nil {
			logger.Fatal().Err(err).Msg("blob store")
		}
		blobs = fsStore
	}

	var notifier adapter.MarkerNotifier = notify.NoopNotifier{}
	if cfg.Notify.MarkerWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.MarkerWebhookURL, cfg.Notify.Timeout, logger)
	}

	// ---- Job runner ----
	consent := usecase.NewConsentResolver(
		integrityClient, consentRepo,
		cfg.Integrity.ConsentFallbackVersion, cfg.Integrity.ConsentFallbackLanguage,
		logger,
	)
	runner := usecase.NewJobRunner(usecase.JobRunnerDeps{
		Files:       fileRepo,
		Submissions: submissionRepo,
		Blobs:       blobs,
		Integrity:   integrityClient,
		Consent:     consent,
		Notifier:    notifier,
		Extractor:   extract.New(),
	}, usecase.IntegrityOptions{
		PollDelay:          cfg.Scheduler.PollDelay,
		SearchRepositories: cfg.Integrity.SearchRepositories,
		Priority:           cfg.Integrity.Priority,
		PDFLocale:          cfg.Integrity.PDFLocale,
	}, cfg.Scheduler.RetryBaseDelay, logger)

	// ---- Scheduler ----
	var (
		store      repository.JobStore = scheduler.NewMemoryStore()
		schedOpts  []scheduler.Option
		redisClose func() error
	)
	if cfg.Queue.Backend == "redis" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		redisClose = redisClient.Close
		store = red.NewJobStore(redisClient, cfg.Queue.KeyPrefix)
		schedOpts = append(schedOpts, scheduler.WithLocker(red.NewLocker(redisClient), cfg.Queue.KeyPrefix+":tick"))
	}
	sched := scheduler.New(cfg.Scheduler, store, runner, logger, schedOpts...)
	sched.Start(ctx)

	pipeline := usecase.NewPipelineUseCase(sched, fileRepo, blobs, usecase.PipelineLimits{
		InitialDelay:         cfg.Scheduler.InitialDelay,
		IntegrityMaxAttempts: cfg.Scheduler.IntegrityMaxAttempts,
		WordCountMaxAttempts: cfg.Scheduler.WordCountMaxAttempts,
		SignedURLTTL:         cfg.Storage.SignedURLTTL,
	}, logger)

	// ---- HTTP server ----
	srv := web.NewServer(pipeline, blobs, signer, cfg.Admin.APIKey, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	sched.Stop()
	cancel()
	if redisClose != nil {
		_ = redisClose()
	}
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
