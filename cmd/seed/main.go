package main

import (
	"context"
	"log"
	"net/url"

	"fino-ai/internal/models"
	"fino-ai/internal/repository"
	"fino-ai/internal/service"
	"fino-ai/pkg/config"
	"fino-ai/pkg/logger"
	"fino-ai/pkg/postgres"

	"go.uber.org/zap"
)

// Seeds the canonical catalog from the bundled fixture dataset. Run once
// against a fresh database, or again after a dataset version bump; upserts
// make it safe to repeat.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	productRepo := repository.NewProductRepository(db, appLogger)
	mock := service.NewMockConnector()

	appLogger.Info("Seeding canonical catalog",
		zap.String("dataset_version", service.MockDatasetVersion),
	)

	total := 0
	for _, source := range []models.SourceType{models.SourceBankProduct, models.SourceYouthPolicy} {
		payloads, err := mock.Fetch(ctx, source, url.Values{})
		if err != nil {
			appLogger.Fatal("Failed to load fixture dataset", zap.Error(err))
		}

		products := make([]*models.CanonicalProduct, 0, len(payloads))
		for _, result := range service.NormalizeBatch(payloads, source) {
			if result.Err != nil {
				appLogger.Warn("Skipping fixture payload",
					zap.String("source", string(source)),
					zap.Int("index", result.Index),
					zap.Error(result.Err),
				)
				continue
			}
			products = append(products, result.Product)
		}

		if err := productRepo.UpsertBatch(ctx, products); err != nil {
			appLogger.Fatal("Failed to upsert catalog entries",
				zap.String("source", string(source)),
				zap.Error(err),
			)
		}

		appLogger.Info("Seeded source",
			zap.String("source", string(source)),
			zap.Int("count", len(products)),
		)
		total += len(products)
	}

	appLogger.Info("Catalog seeding completed", zap.Int("total", total))
}
