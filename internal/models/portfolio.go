package models

import (
	"time"

	"github.com/google/uuid"
)

type SourceMode string

const (
	ModeLive SourceMode = "live"
	ModeMock SourceMode = "mock"
)

// GenerationParams pin the model invocation so a context can be replayed
// against the same deployment and produce comparable output.
type GenerationParams struct {
	TemplateVersion string  `json:"template_version"`
	Temperature     float64 `json:"temperature"`
	MaxCandidates   int     `json:"max_candidates"`
}

// RecommendationContext is the bounded payload offered to the generative
// model. It is built fresh per request and never persisted.
type RecommendationContext struct {
	UserProfile       UserProfile        `json:"user_profile"`
	CandidateProducts []CanonicalProduct `json:"candidate_products"`
	Params            GenerationParams   `json:"generation_params"`
}

type PortfolioItem struct {
	ProductID string  `db:"product_id" json:"product_id"`
	Weight    float64 `db:"weight" json:"weight"`
	Rationale string  `db:"rationale" json:"rationale"`
}

// PortfolioRecommendation is the validated, ranked result handed back to the
// caller. Weights sum to 1.0 (renormalized after tolerance validation).
type PortfolioRecommendation struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	Items           []PortfolioItem `db:"items" json:"items"`
	ExpectedReturn  float64         `db:"expected_return" json:"expected_return"`
	RiskScore       float64         `db:"risk_score" json:"risk_score"`
	Reason          string          `db:"reason" json:"reason"`
	SourceMode      SourceMode      `db:"source_mode" json:"source_mode"`
	TemplateVersion string          `db:"template_version" json:"template_version"`
	GeneratedAt     time.Time       `db:"generated_at" json:"generated_at"`
}
