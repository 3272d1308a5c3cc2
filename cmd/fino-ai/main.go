package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fino-ai/internal/api"
	"fino-ai/internal/api/handlers"
	"fino-ai/internal/repository"
	"fino-ai/internal/service"
	"fino-ai/pkg/config"
	"fino-ai/pkg/logger"
	"fino-ai/pkg/postgres"

	"go.uber.org/zap"
)

// @title Fino AI API
// @version 1.0
// @description Normalization and recommendation pipeline for bank products and youth policies

// @contact.name API Support
// @contact.email support@fino-ai.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting Fino AI service", zap.String("source_mode", cfg.Sources.Mode))

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	productRepo := repository.NewProductRepository(db, appLogger)
	userRepo := repository.NewUserRepository(db, appLogger)
	portfolioRepo := repository.NewPortfolioRepository(db, appLogger)

	// Select the source connector. Mock fallback only applies to live mode;
	// a mock primary has nothing to fall back to.
	var connector service.Connector
	var mockFallback service.Connector
	if cfg.Sources.Mode == "live" {
		connector = service.NewHTTPConnector(&cfg.Sources, appLogger)
		if cfg.Sources.MockFallback {
			mockFallback = service.NewMockConnector()
		}
	} else {
		connector = service.NewMockConnector()
	}

	// Initialize pipeline components
	builder := service.NewContextBuilder(&cfg.Pipeline, appLogger)
	parser := service.NewResultParser(&cfg.Pipeline, appLogger)

	engine, err := service.NewLLMEngine(ctx, &cfg.GigaChat, &cfg.Pipeline, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize generation engine", zap.Error(err))
	}
	defer engine.Close()

	orchestrator := service.NewOrchestrator(
		connector,
		mockFallback,
		builder,
		engine,
		parser,
		productRepo,
		portfolioRepo,
		&cfg.Pipeline,
		appLogger,
	)

	// Initialize handlers
	preprocessHandler := handlers.NewPreprocessHandler(orchestrator, productRepo, appLogger)
	portfolioHandler := handlers.NewPortfolioHandler(orchestrator, userRepo, portfolioRepo, appLogger)
	userHandler := handlers.NewUserHandler(userRepo, appLogger)

	// Setup router
	app := api.SetupRouter(preprocessHandler, portfolioHandler, userHandler, cfg, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
