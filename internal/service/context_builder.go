package service

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"fino-ai/internal/models"
	"fino-ai/pkg/config"

	"go.uber.org/zap"
)

// Maximum product risk_level a profile may be offered. Anything above the
// cap is ineligible regardless of its predicates.
var riskCaps = map[models.RiskTolerance]float64{
	models.RiskLow:    2,
	models.RiskMedium: 3,
	models.RiskHigh:   5,
}

// ContextBuilder selects, scores and bounds the candidate set for one
// request. Everything here is deterministic: identical inputs produce an
// identical, identically ordered context.
type ContextBuilder struct {
	cfg    *config.PipelineConfig
	logger *zap.Logger
}

func NewContextBuilder(cfg *config.PipelineConfig, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{cfg: cfg, logger: logger}
}

// Build filters candidates to those eligible for the profile, ranks them by
// the scoring heuristic and truncates to the configured maximum. Truncation
// is the lever that keeps the generated prompt within its size budget.
func (b *ContextBuilder) Build(profile *models.UserProfile, candidates []models.CanonicalProduct) (*models.RecommendationContext, error) {
	eligible := make([]models.CanonicalProduct, 0, len(candidates))
	for _, p := range candidates {
		if b.isEligible(profile, &p) {
			eligible = append(eligible, p)
		}
	}

	if len(eligible) == 0 {
		return nil, &BuildError{Kind: NoEligibleCandidates}
	}

	// Score descending, then id and source type ascending: ids are unique only
	// per source, so the tie-break needs both to stay total.
	sort.SliceStable(eligible, func(i, j int) bool {
		si, sj := candidateScore(&eligible[i]), candidateScore(&eligible[j])
		if si != sj {
			return si > sj
		}
		if eligible[i].ID != eligible[j].ID {
			return eligible[i].ID < eligible[j].ID
		}
		return eligible[i].SourceType < eligible[j].SourceType
	})

	if len(eligible) > b.cfg.MaxCandidates {
		b.logger.Debug("Truncating candidate set",
			zap.Int("eligible", len(eligible)),
			zap.Int("max", b.cfg.MaxCandidates),
		)
		eligible = eligible[:b.cfg.MaxCandidates]
	}

	return &models.RecommendationContext{
		UserProfile:       *profile,
		CandidateProducts: eligible,
		Params: models.GenerationParams{
			TemplateVersion: b.cfg.TemplateVersion,
			Temperature:     engineTemperature,
			MaxCandidates:   b.cfg.MaxCandidates,
		},
	}, nil
}

func (b *ContextBuilder) isEligible(profile *models.UserProfile, p *models.CanonicalProduct) bool {
	if p.Attr("risk_level", 1) > riskCaps[profile.RiskTolerance] {
		return false
	}
	for _, raw := range p.EligibilityCriteria {
		pred, ok := parsePredicate(raw)
		if !ok {
			// Non-predicate criteria (free text that slipped through) do not
			// gate eligibility; they remain visible in the raw source ref.
			continue
		}
		if !pred.eval(profile) {
			return false
		}
	}
	return true
}

// candidateScore is the documented truncation heuristic: favor yield and
// policy benefit, penalize risk. All inputs are fixed-unit canonical
// attributes, so the score is stable across runs.
func candidateScore(p *models.CanonicalProduct) float64 {
	return p.Attr("interest_rate", 0)*100 + p.Attr("benefit_amount", 0)/1e7 - p.Attr("risk_level", 1)
}

type predicateOp string

const (
	opGTE predicateOp = ">="
	opLTE predicateOp = "<="
	opEQ  predicateOp = "=="
)

type predicate struct {
	field string
	op    predicateOp
	value string
}

var predicateRe = regexp.MustCompile(`^\s*(age|income_band|risk_tolerance|goal)\s*(>=|<=|==)\s*(\S+)\s*$`)

func parsePredicate(s string) (predicate, bool) {
	m := predicateRe.FindStringSubmatch(s)
	if m == nil {
		return predicate{}, false
	}
	return predicate{field: m[1], op: predicateOp(m[2]), value: m[3]}, true
}

func (pr predicate) eval(profile *models.UserProfile) bool {
	switch pr.field {
	case "age":
		limit, err := strconv.Atoi(pr.value)
		if err != nil {
			return false
		}
		return compareInt(profile.Age, pr.op, limit)
	case "risk_tolerance":
		want := models.RiskTolerance(strings.ToLower(pr.value)).Rank()
		if want == 0 {
			return false
		}
		return compareInt(profile.RiskTolerance.Rank(), pr.op, want)
	case "income_band":
		return pr.op == opEQ && strings.EqualFold(profile.IncomeBand, pr.value)
	case "goal":
		return pr.op == opEQ && profile.HasGoal(pr.value)
	default:
		return false
	}
}

func compareInt(have int, op predicateOp, want int) bool {
	switch op {
	case opGTE:
		return have >= want
	case opLTE:
		return have <= want
	case opEQ:
		return have == want
	default:
		return false
	}
}
