package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"lumina/internal/config"
	"lumina/internal/database"
	"lumina/internal/domain"
	"lumina/internal/logger"
	"lumina/internal/repository"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "JSON file holding an array of products")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if *file == "" {
		log.Fatal("Missing -file flag")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("Failed to read product file", zap.String("file", *file), zap.Error(err))
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		log.Fatal("Failed to parse product file", zap.String("file", *file), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	result, err := repository.ImportProducts(ctx, repository.NewProductRepository(db), products, log)
	if err != nil {
		log.Fatal("Catalog import failed",
			zap.Int("created", result.Created),
			zap.Int("skipped", result.Skipped),
			zap.Error(err),
		)
	}

	log.Info("Catalog import complete",
		zap.String("file", *file),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
}
