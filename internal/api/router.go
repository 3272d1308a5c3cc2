package api

import (
	"net/url"

	"fino-ai/docs"
	"fino-ai/internal/api/handlers"
	"fino-ai/internal/models"
	"fino-ai/internal/service"
	"fino-ai/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

func SetupRouter(
	preprocessHandler *handlers.PreprocessHandler,
	portfolioHandler *handlers.PortfolioHandler,
	userHandler *handlers.UserHandler,
	cfg *config.Config,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	// Swagger - importing docs registers the spec via init()
	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":           "healthy",
			"source_mode":      cfg.Sources.Mode,
			"mock_fallback":    cfg.Sources.MockFallback,
			"template_version": cfg.Pipeline.TemplateVersion,
			"dataset_version":  service.MockDatasetVersion,
		})
	})

	// Local development helper: the bundled fixture dataset.
	app.Get("/sample-data", func(c *fiber.Ctx) error {
		mock := service.NewMockConnector()
		products, _ := mock.Fetch(c.Context(), models.SourceBankProduct, url.Values{})
		policies, _ := mock.Fetch(c.Context(), models.SourceYouthPolicy, url.Values{})
		return c.JSON(fiber.Map{
			"dataset_version": service.MockDatasetVersion,
			"bank_products":   products,
			"youth_policies":  policies,
		})
	})

	v1 := app.Group("/api/v1")

	v1.Post("/preprocess/:source_type", preprocessHandler.Preprocess)
	v1.Get("/products", preprocessHandler.ListProducts)

	v1.Post("/users", userHandler.Create)
	v1.Get("/users/:id", userHandler.Get)

	portfolio := v1.Group("/portfolio")
	portfolio.Post("/recommend/:user_id", portfolioHandler.Recommend)
	portfolio.Get("/history/:user_id", portfolioHandler.History)

	appLogger.Info("Router configured", zap.String("source_mode", cfg.Sources.Mode))

	return app
}
