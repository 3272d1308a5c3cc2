package service

import (
	"encoding/json"
	"fmt"
	"testing"

	"fino-ai/internal/models"
	"fino-ai/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPipelineConfig() *config.PipelineConfig {
	// RetryLimit of 1 keeps the fallback tests from sitting out the full
	// backoff schedule while still exercising the retry path.
	return &config.PipelineConfig{
		MaxCandidates:   20,
		RetryLimit:      1,
		TemplateVersion: "v1",
		WeightTolerance: 0.01,
	}
}

func testProfile(age int, tolerance models.RiskTolerance) *models.UserProfile {
	return &models.UserProfile{
		UserID:        uuid.New(),
		Name:          "tester",
		Age:           age,
		IncomeBand:    "medium",
		RiskTolerance: tolerance,
		Goals:         []string{"savings"},
	}
}

func candidate(id string, risk float64, rate float64, criteria ...string) models.CanonicalProduct {
	return models.CanonicalProduct{
		ID:                  id,
		SourceType:          models.SourceBankProduct,
		Name:                "product " + id,
		Category:            "deposit",
		EligibilityCriteria: criteria,
		NumericAttributes: map[string]float64{
			"interest_rate": rate,
			"risk_level":    risk,
		},
	}
}

func TestBuildFiltersByRiskCap(t *testing.T) {
	builder := NewContextBuilder(testPipelineConfig(), zap.NewNop())

	candidates := []models.CanonicalProduct{
		candidate("SAFE", 1, 0.035),
		candidate("FUND", 4, 0.07),
	}

	rc, err := builder.Build(testProfile(28, models.RiskLow), candidates)
	require.NoError(t, err)

	require.Len(t, rc.CandidateProducts, 1)
	assert.Equal(t, "SAFE", rc.CandidateProducts[0].ID)
}

func TestBuildEvaluatesAgePredicates(t *testing.T) {
	builder := NewContextBuilder(testPipelineConfig(), zap.NewNop())

	candidates := []models.CanonicalProduct{
		candidate("YOUTH", 1, 0.05, "age>=19", "age<=34"),
		candidate("PLAIN", 1, 0.03),
	}

	rc, err := builder.Build(testProfile(40, models.RiskMedium), candidates)
	require.NoError(t, err)

	require.Len(t, rc.CandidateProducts, 1)
	assert.Equal(t, "PLAIN", rc.CandidateProducts[0].ID)
}

func TestBuildIgnoresFreeTextCriteria(t *testing.T) {
	builder := NewContextBuilder(testPipelineConfig(), zap.NewNop())

	// Non-predicate criteria do not gate eligibility.
	candidates := []models.CanonicalProduct{
		candidate("LOOSE", 1, 0.03, "무주택자 대상"),
	}

	rc, err := builder.Build(testProfile(30, models.RiskLow), candidates)
	require.NoError(t, err)
	require.Len(t, rc.CandidateProducts, 1)
}

func TestBuildNoEligibleCandidates(t *testing.T) {
	builder := NewContextBuilder(testPipelineConfig(), zap.NewNop())

	candidates := []models.CanonicalProduct{
		candidate("FUND", 4, 0.07),
	}

	_, err := builder.Build(testProfile(28, models.RiskLow), candidates)
	require.Error(t, err)

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, NoEligibleCandidates, be.Kind)
}

func TestBuildOrdersByScoreThenID(t *testing.T) {
	builder := NewContextBuilder(testPipelineConfig(), zap.NewNop())

	candidates := []models.CanonicalProduct{
		candidate("B", 1, 0.03),
		candidate("A", 1, 0.03), // same score as B, id breaks the tie
		candidate("TOP", 1, 0.05),
	}

	rc, err := builder.Build(testProfile(28, models.RiskMedium), candidates)
	require.NoError(t, err)

	require.Len(t, rc.CandidateProducts, 3)
	assert.Equal(t, "TOP", rc.CandidateProducts[0].ID)
	assert.Equal(t, "A", rc.CandidateProducts[1].ID)
	assert.Equal(t, "B", rc.CandidateProducts[2].ID)
}

func TestBuildTruncatesToMaxCandidates(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxCandidates = 3
	builder := NewContextBuilder(cfg, zap.NewNop())

	candidates := make([]models.CanonicalProduct, 0, 10)
	for i := 0; i < 10; i++ {
		candidates = append(candidates, candidate(fmt.Sprintf("P%02d", i), 1, float64(i)/100))
	}

	rc, err := builder.Build(testProfile(28, models.RiskMedium), candidates)
	require.NoError(t, err)

	require.Len(t, rc.CandidateProducts, 3)
	// Highest-scoring survivors, still ordered.
	assert.Equal(t, "P09", rc.CandidateProducts[0].ID)
	assert.Equal(t, "P08", rc.CandidateProducts[1].ID)
	assert.Equal(t, "P07", rc.CandidateProducts[2].ID)
}

func TestBuildTieBreaksOnSourceType(t *testing.T) {
	builder := NewContextBuilder(testPipelineConfig(), zap.NewNop())

	// Same id and same score from two different sources: the composite
	// tie-break keeps the order total instead of input-dependent.
	bank := candidate("DUP", 1, 0.03)
	youth := candidate("DUP", 1, 0.03)
	youth.SourceType = models.SourceYouthPolicy

	rc, err := builder.Build(testProfile(28, models.RiskMedium), []models.CanonicalProduct{youth, bank})
	require.NoError(t, err)

	require.Len(t, rc.CandidateProducts, 2)
	assert.Equal(t, models.SourceBankProduct, rc.CandidateProducts[0].SourceType)
	assert.Equal(t, models.SourceYouthPolicy, rc.CandidateProducts[1].SourceType)
}

func TestBuildIsDeterministic(t *testing.T) {
	builder := NewContextBuilder(testPipelineConfig(), zap.NewNop())
	profile := testProfile(28, models.RiskMedium)

	candidates := []models.CanonicalProduct{
		candidate("B", 2, 0.04),
		candidate("A", 1, 0.04),
		candidate("C", 1, 0.05, "age>=19"),
	}

	first, err := builder.Build(profile, candidates)
	require.NoError(t, err)
	second, err := builder.Build(profile, candidates)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestParsePredicate(t *testing.T) {
	cases := []struct {
		in    string
		ok    bool
		field string
		op    predicateOp
		value string
	}{
		{"age>=19", true, "age", opGTE, "19"},
		{"age <= 34", true, "age", opLTE, "34"},
		{"income_band==low", true, "income_band", opEQ, "low"},
		{"risk_tolerance<=medium", true, "risk_tolerance", opLTE, "medium"},
		{"goal==housing", true, "goal", opEQ, "housing"},
		{"salary>1000", false, "", "", ""},
		{"만 19세 이상", false, "", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			pred, ok := parsePredicate(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.field, pred.field)
				assert.Equal(t, tc.op, pred.op)
				assert.Equal(t, tc.value, pred.value)
			}
		})
	}
}

func TestPredicateEvalRiskTolerance(t *testing.T) {
	pred, ok := parsePredicate("risk_tolerance>=medium")
	require.True(t, ok)

	assert.False(t, pred.eval(testProfile(28, models.RiskLow)))
	assert.True(t, pred.eval(testProfile(28, models.RiskMedium)))
	assert.True(t, pred.eval(testProfile(28, models.RiskHigh)))
}
