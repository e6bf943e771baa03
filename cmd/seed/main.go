package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"integrity-pipeline/internal/config"
	"integrity-pipeline/internal/domain/model"
	pg "integrity-pipeline/internal/infra/db/postgres"
)

// seed writes the integrity service settings into the configuration table.
// Values come from flags, falling back to INTEGRITY_* environment variables.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	apiURL := flag.String("api-url", os.Getenv("INTEGRITY_API_URL"), "integrity service base URL")
	apiKey := flag.String("api-key", os.Getenv("INTEGRITY_API_KEY"), "integrity service API key")
	name := flag.String("integration-name", envOr("INTEGRITY_INTEGRATION_NAME", "integrity-pipeline"), "integration name header")
	ver := flag.String("integration-version", envOr("INTEGRITY_INTEGRATION_VERSION", "1.0.0"), "integration version header")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	repo := pg.NewPostgresSettingRepo(pool)
	existing, err := repo.ListAll(ctx)
	if err != nil {
		log.Fatalf("list settings: %v", err)
	}

	values := map[string]string{
		model.SettingIntegrityAPIURL:             *apiURL,
		model.SettingIntegrityAPIKey:             *apiKey,
		model.SettingIntegrityIntegrationName:    *name,
		model.SettingIntegrityIntegrationVersion: *ver,
	}
	for _, key := range model.IntegritySettingKeys {
		v := values[key]
		if v == "" {
			if existing[key] == "" {
				fmt.Printf("  ! %s has no value; the integrity client will refuse to run\n", key)
			}
			continue
		}
		if err := repo.Upsert(ctx, key, v); err != nil {
			log.Fatalf("upsert %s: %v", key, err)
		}
		fmt.Printf("  - %s set\n", key)
	}
	fmt.Println("Seeding complete.")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
