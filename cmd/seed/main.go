package main

// Load countries and regulations:
//   go run ./cmd/seed                       # bundled seed
//   SEED_FILE=path/to/seed.yaml go run ./cmd/seed

import (
	"context"
	"log"
	"os"

	"exportready-backend/internal/bootstrap"
	"exportready-backend/internal/countries"
	"exportready-backend/internal/shared/config"
	"exportready-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	seed, err := bootstrap.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		log.Printf("failed to load seed: %v", err)
		os.Exit(1)
	}

	opts := db.OptionsFromEnv(db.DefaultCLIOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	seeder := &countries.Seeder{Repo: &countries.PGRepo{DB: sqlDB}}
	res, err := seeder.Apply(ctx, seed)
	if err != nil {
		log.Printf("failed to apply seed: %v", err)
		os.Exit(1)
	}
	log.Printf("seeded %d countries, %d regulations created, %d already present",
		res.Countries, res.RegulationsCreated, res.RegulationsSkipped)
}
