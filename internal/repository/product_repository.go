package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"fino-ai/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ProductRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProductRepository(db *pgxpool.Pool, logger *zap.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertBatch writes normalized catalog rows, replacing earlier versions of
// the same (id, source_type) pair. Criteria and attributes go to JSONB.
func (r *ProductRepository) UpsertBatch(ctx context.Context, products []*models.CanonicalProduct) error {
	if len(products) == 0 {
		return nil
	}

	builder := squirrel.Insert("products").
		Columns("id", "source_type", "name", "category", "eligibility_criteria", "numeric_attributes", "raw_source_ref", "created_at", "updated_at").
		PlaceholderFormat(squirrel.Dollar).
		Suffix(`ON CONFLICT (id, source_type) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			eligibility_criteria = EXCLUDED.eligibility_criteria,
			numeric_attributes = EXCLUDED.numeric_attributes,
			raw_source_ref = EXCLUDED.raw_source_ref,
			updated_at = EXCLUDED.updated_at`)

	for _, p := range products {
		criteria, err := json.Marshal(p.EligibilityCriteria)
		if err != nil {
			return fmt.Errorf("failed to marshal criteria for %s: %w", p.ID, err)
		}
		attrs, err := json.Marshal(p.NumericAttributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes for %s: %w", p.ID, err)
		}
		builder = builder.Values(p.ID, p.SourceType, p.Name, p.Category, criteria, attrs, p.RawSourceRef, p.CreatedAt, p.UpdatedAt)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return err
	}

	r.logger.Info("Catalog upsert completed", zap.Int("count", len(products)))
	return nil
}

func (r *ProductRepository) List(ctx context.Context, source models.SourceType, limit, offset int) ([]models.CanonicalProduct, error) {
	query := squirrel.Select("id", "source_type", "name", "category", "eligibility_criteria", "numeric_attributes", "raw_source_ref", "created_at", "updated_at").
		From("products").
		OrderBy("source_type", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	if source != "" {
		query = query.Where(squirrel.Eq{"source_type": source})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.CanonicalProduct
	for rows.Next() {
		var p models.CanonicalProduct
		var criteria, attrs []byte
		if err := rows.Scan(
			&p.ID, &p.SourceType, &p.Name, &p.Category, &criteria, &attrs, &p.RawSourceRef, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(criteria, &p.EligibilityCriteria); err != nil {
			return nil, fmt.Errorf("corrupt criteria for %s: %w", p.ID, err)
		}
		if err := json.Unmarshal(attrs, &p.NumericAttributes); err != nil {
			return nil, fmt.Errorf("corrupt attributes for %s: %w", p.ID, err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}
