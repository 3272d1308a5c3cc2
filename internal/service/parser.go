package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"fino-ai/internal/models"
	"fino-ai/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// modelOutput is the structured answer the engine's template demands.
type modelOutput struct {
	Items []struct {
		ProductID string  `json:"product_id"`
		Weight    float64 `json:"weight"`
		Rationale string  `json:"rationale"`
	} `json:"items"`
	ExpectedReturn float64 `json:"expected_return"`
	RiskScore      float64 `json:"risk_score"`
	Reason         string  `json:"reason"`
}

// ResultParser validates model output against the candidate set that was
// actually offered. The model is untrusted: unknown ids and broken weight
// sums are rejected, never repaired beyond the single extraction pass.
type ResultParser struct {
	cfg    *config.PipelineConfig
	logger *zap.Logger
}

func NewResultParser(cfg *config.PipelineConfig, logger *zap.Logger) *ResultParser {
	return &ResultParser{cfg: cfg, logger: logger}
}

func (p *ResultParser) Parse(raw string, candidates []models.CanonicalProduct, userID uuid.UUID) (*models.PortfolioRecommendation, error) {
	out, err := p.decode(raw)
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, &ParseError{Kind: Unparseable, Detail: "no portfolio items in output"}
	}

	// The model references candidates by bare product id. Ids are unique per
	// source type only, so a cross-source duplicate resolves to the first,
	// higher-ranked candidate; the offered list arrives deterministically
	// ordered, which keeps attribute lookups stable.
	known := make(map[string]*models.CanonicalProduct, len(candidates))
	for i := range candidates {
		if _, ok := known[candidates[i].ID]; !ok {
			known[candidates[i].ID] = &candidates[i]
		}
	}

	var sum float64
	items := make([]models.PortfolioItem, 0, len(out.Items))
	for _, item := range out.Items {
		if _, ok := known[item.ProductID]; !ok {
			return nil, &ParseError{Kind: HallucinatedReference, Detail: fmt.Sprintf("product %q was not offered", item.ProductID)}
		}
		if item.Weight < 0 || item.Weight > 1 {
			return nil, &ParseError{Kind: WeightsInvalid, Detail: fmt.Sprintf("weight %.4f out of [0,1]", item.Weight)}
		}
		sum += item.Weight
		items = append(items, models.PortfolioItem{
			ProductID: item.ProductID,
			Weight:    item.Weight,
			Rationale: sanitizeUTF8(strings.TrimSpace(item.Rationale)),
		})
	}

	if math.Abs(sum-1.0) > p.cfg.WeightTolerance {
		return nil, &ParseError{Kind: WeightsInvalid, Detail: fmt.Sprintf("weights sum to %.4f", sum)}
	}

	// Within tolerance: renormalize so the stored portfolio sums to exactly 1,
	// then rank by weight with product id as the stable tie-break.
	for i := range items {
		items[i].Weight /= sum
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Weight != items[j].Weight {
			return items[i].Weight > items[j].Weight
		}
		return items[i].ProductID < items[j].ProductID
	})

	rec := &models.PortfolioRecommendation{
		ID:             uuid.New(),
		UserID:         userID,
		Items:          items,
		ExpectedReturn: out.ExpectedReturn,
		RiskScore:      out.RiskScore,
		Reason:         sanitizeUTF8(strings.TrimSpace(out.Reason)),
		GeneratedAt:    time.Now().UTC(),
	}

	if rec.ExpectedReturn == 0 || rec.RiskScore == 0 {
		p.fillAggregates(rec, known)
	}

	return rec, nil
}

// decode attempts strict validation first, then one best-effort extraction of
// a JSON object buried in explanatory text or markdown fences. A second
// failure is final; the pipeline never loops coercing bad output.
func (p *ResultParser) decode(raw string) (*modelOutput, error) {
	raw = strings.TrimSpace(raw)

	var out modelOutput
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return &out, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, &ParseError{Kind: Unparseable, Detail: "no JSON object in output"}
	}

	extracted := strings.TrimSpace(raw[start : end+1])
	extracted = strings.TrimPrefix(extracted, "```json")
	extracted = strings.TrimPrefix(extracted, "```")
	extracted = strings.TrimSuffix(extracted, "```")

	if err := json.Unmarshal([]byte(extracted), &out); err != nil {
		p.logger.Warn("Model output extraction failed", zap.Error(err))
		return nil, &ParseError{Kind: Unparseable, Detail: "extracted substructure is not valid JSON"}
	}
	return &out, nil
}

// fillAggregates computes expected return and risk score from the offered
// candidates' canonical attributes when the model omitted them.
func (p *ResultParser) fillAggregates(rec *models.PortfolioRecommendation, known map[string]*models.CanonicalProduct) {
	var ret, risk float64
	for _, item := range rec.Items {
		prod := known[item.ProductID]
		ret += prod.Attr("interest_rate", 0) * item.Weight
		risk += prod.Attr("risk_level", 1) * item.Weight
	}
	if rec.ExpectedReturn == 0 {
		rec.ExpectedReturn = ret
	}
	if rec.RiskScore == 0 {
		rec.RiskScore = risk
	}
}
