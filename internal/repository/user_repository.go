package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"fino-ai/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

func (r *UserRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	goals, err := json.Marshal(profile.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}

	query := squirrel.Insert("user_profiles").
		Columns("user_id", "name", "age", "income_band", "total_assets", "risk_tolerance", "goals", "created_at", "updated_at").
		Values(profile.UserID, profile.Name, profile.Age, profile.IncomeBand, profile.TotalAssets, profile.RiskTolerance, goals, profile.CreatedAt, profile.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	query := squirrel.Select("user_id", "name", "age", "income_band", "total_assets", "risk_tolerance", "goals", "created_at", "updated_at").
		From("user_profiles").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var profile models.UserProfile
	var goals []byte
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&profile.UserID, &profile.Name, &profile.Age, &profile.IncomeBand, &profile.TotalAssets,
		&profile.RiskTolerance, &goals, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(goals, &profile.Goals); err != nil {
		return nil, fmt.Errorf("corrupt goals for %s: %w", profile.UserID, err)
	}

	return &profile, nil
}
