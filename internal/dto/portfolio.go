package dto

import "fino-ai/internal/models"

// RecommendRequest optionally overrides the stored profile for one request.
type RecommendRequest struct {
	Profile *ProfilePayload `json:"profile,omitempty"`
}

type ProfilePayload struct {
	Name          string   `json:"name"`
	Age           int      `json:"age"`
	IncomeBand    string   `json:"income_band"`
	TotalAssets   float64  `json:"total_assets"`
	RiskTolerance string   `json:"risk_tolerance"`
	Goals         []string `json:"goals"`
}

type PortfolioItemResponse struct {
	ProductID string  `json:"product_id"`
	Weight    float64 `json:"weight"`
	Rationale string  `json:"rationale"`
}

type RecommendResponse struct {
	ID              string                  `json:"id"`
	UserID          string                  `json:"user_id"`
	Items           []PortfolioItemResponse `json:"items"`
	ExpectedReturn  float64                 `json:"expected_return"`
	RiskScore       float64                 `json:"risk_score"`
	Reason          string                  `json:"reason"`
	SourceMode      string                  `json:"source_mode"`
	TemplateVersion string                  `json:"template_version"`
	GeneratedAt     string                  `json:"generated_at"`
}

func NewRecommendResponse(rec *models.PortfolioRecommendation) RecommendResponse {
	items := make([]PortfolioItemResponse, 0, len(rec.Items))
	for _, item := range rec.Items {
		items = append(items, PortfolioItemResponse{
			ProductID: item.ProductID,
			Weight:    item.Weight,
			Rationale: item.Rationale,
		})
	}
	return RecommendResponse{
		ID:              rec.ID.String(),
		UserID:          rec.UserID.String(),
		Items:           items,
		ExpectedReturn:  rec.ExpectedReturn,
		RiskScore:       rec.RiskScore,
		Reason:          rec.Reason,
		SourceMode:      string(rec.SourceMode),
		TemplateVersion: rec.TemplateVersion,
		GeneratedAt:     rec.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
