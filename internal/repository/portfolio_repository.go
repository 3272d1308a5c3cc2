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

type PortfolioRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPortfolioRepository(db *pgxpool.Pool, logger *zap.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PortfolioRepository) Create(ctx context.Context, rec *models.PortfolioRecommendation) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio items: %w", err)
	}

	query := squirrel.Insert("recommendation_history").
		Columns("id", "user_id", "items", "expected_return", "risk_score", "reason", "source_mode", "template_version", "generated_at").
		Values(rec.ID, rec.UserID, items, rec.ExpectedReturn, rec.RiskScore, rec.Reason, rec.SourceMode, rec.TemplateVersion, rec.GeneratedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *PortfolioRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.PortfolioRecommendation, error) {
	query := squirrel.Select("id", "user_id", "items", "expected_return", "risk_score", "reason", "source_mode", "template_version", "generated_at").
		From("recommendation_history").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("generated_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.PortfolioRecommendation
	for rows.Next() {
		var rec models.PortfolioRecommendation
		var items []byte
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &items, &rec.ExpectedReturn, &rec.RiskScore,
			&rec.Reason, &rec.SourceMode, &rec.TemplateVersion, &rec.GeneratedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &rec.Items); err != nil {
			return nil, fmt.Errorf("corrupt items for recommendation %s: %w", rec.ID, err)
		}
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}
