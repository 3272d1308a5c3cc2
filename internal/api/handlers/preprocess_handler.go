package handlers

import (
	"errors"

	"fino-ai/internal/dto"
	"fino-ai/internal/models"
	"fino-ai/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type PreprocessHandler struct {
	orchestrator *service.Orchestrator
	productRepo  service.ProductStore
	logger       *zap.Logger
}

func NewPreprocessHandler(orchestrator *service.Orchestrator, productRepo service.ProductStore, logger *zap.Logger) *PreprocessHandler {
	return &PreprocessHandler{
		orchestrator: orchestrator,
		productRepo:  productRepo,
		logger:       logger,
	}
}

// Preprocess godoc
// @Summary Normalize upstream listings
// @Description Normalize a batch of raw upstream payloads into canonical products. An empty batch triggers a fetch from the configured source.
// @Tags preprocess
// @Accept json
// @Produce json
// @Param source_type path string true "Source type: bank_product or youth_policy"
// @Param request body dto.PreprocessRequest false "Raw payloads"
// @Success 200 {object} dto.PreprocessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/preprocess/{source_type} [post]
func (h *PreprocessHandler) Preprocess(c *fiber.Ctx) error {
	source, ok := models.ParseSourceType(c.Params("source_type"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "unknown source type",
		})
	}

	var req dto.PreprocessRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "invalid request body",
			})
		}
	}

	reports, mode, err := h.orchestrator.Preprocess(c.Context(), source, req.Payloads)
	if err != nil {
		return respondPipelineError(c, h.logger, err)
	}

	failed := 0
	for _, r := range reports {
		if r.Error != "" {
			failed++
		}
	}

	return c.JSON(dto.PreprocessResponse{
		SourceType: string(source),
		SourceMode: string(mode),
		Normalized: len(reports) - failed,
		Failed:     failed,
		Items:      reports,
	})
}

// ListProducts godoc
// @Summary List canonical products
// @Description List persisted canonical catalog entries.
// @Tags preprocess
// @Produce json
// @Param source_type query string false "Filter by source type"
// @Param limit query int false "Limit" default(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.CanonicalProduct
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/products [get]
func (h *PreprocessHandler) ListProducts(c *fiber.Ctx) error {
	var source models.SourceType
	if s := c.Query("source_type"); s != "" {
		parsed, ok := models.ParseSourceType(s)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "unknown source type",
			})
		}
		source = parsed
	}

	limit, offset := pageParams(c, 100)

	products, err := h.productRepo.List(c.Context(), source, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to list products",
		})
	}

	return c.JSON(products)
}

// pageParams reads limit/offset, clamping out-of-range values to the defaults
// so SQL LIMIT/OFFSET never see a negative value cast to uint64.
func pageParams(c *fiber.Ctx, defaultLimit int) (int, int) {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// respondPipelineError translates the pipeline taxonomy into a structured
// error body. Internal detail stays in the logs.
func respondPipelineError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	logger.Error("Pipeline request failed", zap.Error(err))

	stage := ""
	var stageErr *service.StageError
	inner := err
	if errors.As(err, &stageErr) {
		stage = string(stageErr.Stage)
		inner = stageErr.Err
	}

	kind := service.ErrorKind(inner)
	status := fiber.StatusInternalServerError
	switch kind {
	case string(service.Unauthorized), string(service.Unreachable), string(service.MalformedResponse):
		status = fiber.StatusBadGateway
	case string(service.NoEligibleCandidates):
		status = fiber.StatusNotFound
	case string(service.Timeout):
		status = fiber.StatusGatewayTimeout
	case string(service.Denied), string(service.Transient):
		status = fiber.StatusBadGateway
	case string(service.Unparseable), string(service.HallucinatedReference), string(service.WeightsInvalid):
		status = fiber.StatusBadGateway
	}

	return c.Status(status).JSON(dto.ErrorResponse{
		Error: "recommendation pipeline failed",
		Stage: stage,
		Kind:  kind,
	})
}
