package handlers

import (
	"time"

	"fino-ai/internal/dto"
	"fino-ai/internal/models"
	"fino-ai/internal/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserHandler struct {
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

func NewUserHandler(userRepo *repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Create godoc
// @Summary Create a user profile
// @Tags users
// @Accept json
// @Produce json
// @Param request body dto.CreateUserRequest true "User profile"
// @Success 201 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/users [post]
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	tolerance := models.RiskTolerance(req.RiskTolerance)
	if tolerance.Rank() == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "risk_tolerance must be one of low, medium, high",
		})
	}
	if req.Age <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "age must be positive",
		})
	}

	now := time.Now().UTC()
	profile := &models.UserProfile{
		UserID:        uuid.New(),
		Name:          req.Name,
		Age:           req.Age,
		IncomeBand:    req.IncomeBand,
		TotalAssets:   req.TotalAssets,
		RiskTolerance: tolerance,
		Goals:         req.Goals,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.userRepo.Create(c.Context(), profile); err != nil {
		h.logger.Error("Failed to create user profile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to create user",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(userResponse(profile))
}

// Get godoc
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} dto.UserResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) Get(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid user id",
		})
	}

	profile, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "user not found",
		})
	}

	return c.JSON(userResponse(profile))
}

func userResponse(p *models.UserProfile) dto.UserResponse {
	return dto.UserResponse{
		UserID:        p.UserID.String(),
		Name:          p.Name,
		Age:           p.Age,
		IncomeBand:    p.IncomeBand,
		TotalAssets:   p.TotalAssets,
		RiskTolerance: string(p.RiskTolerance),
		Goals:         p.Goals,
		CreatedAt:     p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
