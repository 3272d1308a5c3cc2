package handlers

import (
	"time"

	"fino-ai/internal/dto"
	"fino-ai/internal/models"
	"fino-ai/internal/repository"
	"fino-ai/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PortfolioHandler struct {
	orchestrator  *service.Orchestrator
	userRepo      *repository.UserRepository
	portfolioRepo *repository.PortfolioRepository
	logger        *zap.Logger
}

func NewPortfolioHandler(
	orchestrator *service.Orchestrator,
	userRepo *repository.UserRepository,
	portfolioRepo *repository.PortfolioRepository,
	logger *zap.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		orchestrator:  orchestrator,
		userRepo:      userRepo,
		portfolioRepo: portfolioRepo,
		logger:        logger,
	}
}

// Recommend godoc
// @Summary Generate a portfolio recommendation
// @Description Run the recommendation pipeline for a user. The body may carry a profile override; otherwise the stored profile is used.
// @Tags portfolio
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param request body dto.RecommendRequest false "Profile override"
// @Success 200 {object} dto.RecommendResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/portfolio/recommend/{user_id} [post]
func (h *PortfolioHandler) Recommend(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid user id",
		})
	}

	var req dto.RecommendRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "invalid request body",
			})
		}
	}

	profile, err := h.resolveProfile(c, userID, req.Profile)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "user profile not found",
		})
	}

	rec, err := h.orchestrator.Recommend(c.Context(), profile)
	if err != nil {
		return respondPipelineError(c, h.logger, err)
	}

	return c.JSON(dto.NewRecommendResponse(rec))
}

// History godoc
// @Summary List past recommendations
// @Tags portfolio
// @Produce json
// @Param user_id path string true "User ID"
// @Param limit query int false "Limit" default(10)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} dto.RecommendResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/portfolio/history/{user_id} [get]
func (h *PortfolioHandler) History(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid user id",
		})
	}

	limit, offset := pageParams(c, 10)

	recs, err := h.portfolioRepo.GetByUserID(c.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to load recommendation history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to load history",
		})
	}

	out := make([]dto.RecommendResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, dto.NewRecommendResponse(rec))
	}
	return c.JSON(out)
}

// resolveProfile prefers the request override, falling back to the stored
// profile. Either way the result is a snapshot owned by this request.
func (h *PortfolioHandler) resolveProfile(c *fiber.Ctx, userID uuid.UUID, override *dto.ProfilePayload) (*models.UserProfile, error) {
	if override != nil {
		return &models.UserProfile{
			UserID:        userID,
			Name:          override.Name,
			Age:           override.Age,
			IncomeBand:    override.IncomeBand,
			TotalAssets:   override.TotalAssets,
			RiskTolerance: models.RiskTolerance(override.RiskTolerance),
			Goals:         override.Goals,
			CreatedAt:     time.Now().UTC(),
		}, nil
	}
	return h.userRepo.GetByID(c.Context(), userID)
}
