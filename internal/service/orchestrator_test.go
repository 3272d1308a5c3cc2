package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"fino-ai/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubConnector struct {
	mode     models.SourceMode
	payloads map[models.SourceType][]RawPayload
	err      error
}

func (s *stubConnector) Mode() models.SourceMode { return s.mode }

func (s *stubConnector) Fetch(_ context.Context, source models.SourceType, _ url.Values) ([]RawPayload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payloads[source], nil
}

// flakyConnector fails its first n fetches with a transient error, then
// serves normally.
type flakyConnector struct {
	calls    int
	failures int
	payloads map[models.SourceType][]RawPayload
}

func (f *flakyConnector) Mode() models.SourceMode { return models.ModeLive }

func (f *flakyConnector) Fetch(_ context.Context, source models.SourceType, _ url.Values) ([]RawPayload, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &ConnectorError{Kind: Unreachable, Err: errors.New("transient blip")}
	}
	return f.payloads[source], nil
}

type stubGenerator struct {
	offered []models.CanonicalProduct
	reply   func(rc *models.RecommendationContext) (string, error)
}

func (g *stubGenerator) Generate(_ context.Context, rc *models.RecommendationContext) (string, error) {
	g.offered = rc.CandidateProducts
	return g.reply(rc)
}

// equalSplit answers with every offered product at equal weight, the way a
// well-behaved model would.
func equalSplit(rc *models.RecommendationContext) (string, error) {
	items := make([]map[string]any, 0, len(rc.CandidateProducts))
	weight := 1.0 / float64(len(rc.CandidateProducts))
	for _, p := range rc.CandidateProducts {
		items = append(items, map[string]any{
			"product_id": p.ID,
			"weight":     weight,
			"rationale":  "fits the profile",
		})
	}
	out, err := json.Marshal(map[string]any{
		"items":  items,
		"reason": "even allocation over the eligible set",
	})
	return string(out), err
}

type memoryProductStore struct {
	upserted []*models.CanonicalProduct
}

func (m *memoryProductStore) UpsertBatch(_ context.Context, products []*models.CanonicalProduct) error {
	m.upserted = append(m.upserted, products...)
	return nil
}

func (m *memoryProductStore) List(_ context.Context, _ models.SourceType, _, _ int) ([]models.CanonicalProduct, error) {
	out := make([]models.CanonicalProduct, 0, len(m.upserted))
	for _, p := range m.upserted {
		out = append(out, *p)
	}
	return out, nil
}

type memoryPortfolioStore struct {
	created []*models.PortfolioRecommendation
}

func (m *memoryPortfolioStore) Create(_ context.Context, rec *models.PortfolioRecommendation) error {
	m.created = append(m.created, rec)
	return nil
}

func newTestOrchestrator(conn, fallback Connector, gen Generator) (*Orchestrator, *memoryProductStore, *memoryPortfolioStore) {
	cfg := testPipelineConfig()
	products := &memoryProductStore{}
	portfolios := &memoryPortfolioStore{}
	o := NewOrchestrator(
		conn,
		fallback,
		NewContextBuilder(cfg, zap.NewNop()),
		gen,
		NewResultParser(cfg, zap.NewNop()),
		products,
		portfolios,
		cfg,
		zap.NewNop(),
	)
	return o, products, portfolios
}

func TestRecommendFallsBackToMockDataset(t *testing.T) {
	// Live source down for every fetch; the pipeline must complete on the
	// bundled dataset and mark the recommendation as mock-sourced.
	live := &stubConnector{
		mode: models.ModeLive,
		err:  &ConnectorError{Kind: Unreachable, Err: errors.New("connection refused")},
	}
	gen := &stubGenerator{reply: equalSplit}
	o, _, portfolios := newTestOrchestrator(live, NewMockConnector(), gen)

	rec, err := o.Recommend(context.Background(), testProfile(28, models.RiskHigh))
	require.NoError(t, err)

	assert.Equal(t, models.ModeMock, rec.SourceMode)
	assert.Equal(t, "v1", rec.TemplateVersion)
	assert.NotEmpty(t, rec.Items)
	require.Len(t, portfolios.created, 1)
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	// One transient blip must be absorbed by the retry budget, not degrade
	// the request to the mock dataset.
	flaky := &flakyConnector{
		failures: 1,
		payloads: map[models.SourceType][]RawPayload{
			models.SourceBankProduct: {
				{"productId": "BANK001", "productName": "예금", "interestRate": 3.5},
			},
		},
	}
	o, products, _ := newTestOrchestrator(flaky, NewMockConnector(), &stubGenerator{reply: equalSplit})

	reports, mode, err := o.Preprocess(context.Background(), models.SourceBankProduct, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ModeLive, mode)
	assert.GreaterOrEqual(t, flaky.calls, 2)
	require.Len(t, reports, 1)
	require.Len(t, products.upserted, 1)
	assert.Equal(t, "BANK001", products.upserted[0].ID)
}

func TestRecommendSurvivesTransientBlip(t *testing.T) {
	flaky := &flakyConnector{
		failures: 1,
		payloads: map[models.SourceType][]RawPayload{
			models.SourceBankProduct: {
				{"productId": "BANK001", "productName": "예금", "interestRate": 3.5},
			},
		},
	}
	gen := &stubGenerator{reply: equalSplit}
	o, _, _ := newTestOrchestrator(flaky, NewMockConnector(), gen)

	rec, err := o.Recommend(context.Background(), testProfile(28, models.RiskMedium))
	require.NoError(t, err)

	assert.Equal(t, models.ModeLive, rec.SourceMode)
	assert.GreaterOrEqual(t, flaky.calls, 3)
}

func TestRecommendUnauthorizedIsTerminal(t *testing.T) {
	live := &stubConnector{
		mode: models.ModeLive,
		err:  &ConnectorError{Kind: Unauthorized, Err: errors.New("bad credentials")},
	}
	gen := &stubGenerator{reply: equalSplit}
	o, _, _ := newTestOrchestrator(live, NewMockConnector(), gen)

	_, err := o.Recommend(context.Background(), testProfile(28, models.RiskHigh))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFetching, se.Stage)
	assert.Equal(t, string(Unauthorized), ErrorKind(err))
}

func TestRecommendOffersOnlyEligibleProducts(t *testing.T) {
	conn := &stubConnector{
		mode: models.ModeLive,
		payloads: map[models.SourceType][]RawPayload{
			models.SourceBankProduct: {
				{"productId": "SAFE1", "productName": "정기예금", "interestRate": 3.5, "riskLevel": 1.0},
				{"productId": "FUND1", "productName": "주식형펀드", "interestRate": 7.0, "riskLevel": 4.0},
			},
		},
	}
	gen := &stubGenerator{reply: equalSplit}
	o, _, _ := newTestOrchestrator(conn, nil, gen)

	rec, err := o.Recommend(context.Background(), testProfile(28, models.RiskLow))
	require.NoError(t, err)

	// The high-risk fund never reached the model.
	require.Len(t, gen.offered, 1)
	assert.Equal(t, "SAFE1", gen.offered[0].ID)

	require.Len(t, rec.Items, 1)
	assert.Equal(t, "SAFE1", rec.Items[0].ProductID)
	assert.InDelta(t, 1.0, rec.Items[0].Weight, 1e-9)
	assert.Equal(t, models.ModeLive, rec.SourceMode)
}

func TestRecommendRejectsBrokenWeightSum(t *testing.T) {
	conn := &stubConnector{
		mode: models.ModeLive,
		payloads: map[models.SourceType][]RawPayload{
			models.SourceBankProduct: {
				{"productId": "BANK001", "productName": "예금", "interestRate": 3.5},
				{"productId": "BANK002", "productName": "적금", "interestRate": 4.0},
			},
		},
	}
	gen := &stubGenerator{reply: func(rc *models.RecommendationContext) (string, error) {
		return fmt.Sprintf(`{"items":[
			{"product_id":%q,"weight":0.5,"rationale":"a"},
			{"product_id":%q,"weight":0.42,"rationale":"b"}
		],"reason":"weights sum to 0.92"}`,
			rc.CandidateProducts[0].ID, rc.CandidateProducts[1].ID), nil
	}}
	o, _, portfolios := newTestOrchestrator(conn, nil, gen)

	_, err := o.Recommend(context.Background(), testProfile(28, models.RiskMedium))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageParsing, se.Stage)
	assert.Equal(t, string(WeightsInvalid), ErrorKind(err))
	assert.Empty(t, portfolios.created)
}

func TestRecommendNoCandidatesAfterNormalization(t *testing.T) {
	conn := &stubConnector{
		mode: models.ModeLive,
		payloads: map[models.SourceType][]RawPayload{
			models.SourceBankProduct: {
				{"productName": "no id", "interestRate": 3.5},
			},
		},
	}
	gen := &stubGenerator{reply: equalSplit}
	o, _, _ := newTestOrchestrator(conn, nil, gen)

	_, err := o.Recommend(context.Background(), testProfile(28, models.RiskMedium))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageNormalizing, se.Stage)
	assert.Equal(t, string(NoEligibleCandidates), ErrorKind(err))
}

func TestRecommendEngineFailureIsTerminal(t *testing.T) {
	conn := &stubConnector{
		mode: models.ModeLive,
		payloads: map[models.SourceType][]RawPayload{
			models.SourceBankProduct: {
				{"productId": "BANK001", "productName": "예금", "interestRate": 3.5},
			},
		},
	}
	gen := &stubGenerator{reply: func(*models.RecommendationContext) (string, error) {
		return "", &EngineError{Kind: Timeout, Err: context.DeadlineExceeded}
	}}
	o, _, _ := newTestOrchestrator(conn, nil, gen)

	_, err := o.Recommend(context.Background(), testProfile(28, models.RiskMedium))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageGenerating, se.Stage)
	assert.Equal(t, string(Timeout), ErrorKind(err))
}

func TestPreprocessWithExplicitPayloads(t *testing.T) {
	conn := &stubConnector{mode: models.ModeLive}
	o, products, _ := newTestOrchestrator(conn, nil, &stubGenerator{reply: equalSplit})

	payloads := []RawPayload{
		{"productId": "OK1", "productName": "fine", "interestRate": 3.0},
		{"productName": "broken"},
	}

	reports, mode, err := o.Preprocess(context.Background(), models.SourceBankProduct, payloads)
	require.NoError(t, err)

	assert.Equal(t, models.ModeLive, mode)
	require.Len(t, reports, 2)
	assert.Empty(t, reports[0].Error)
	assert.Equal(t, string(MissingField), reports[1].Kind)

	// Only the good payload was persisted.
	require.Len(t, products.upserted, 1)
	assert.Equal(t, "OK1", products.upserted[0].ID)
}

func TestPreprocessFetchesWhenBatchEmpty(t *testing.T) {
	live := &stubConnector{
		mode: models.ModeLive,
		err:  &ConnectorError{Kind: Unreachable, Err: errors.New("no route to host")},
	}
	o, products, _ := newTestOrchestrator(live, NewMockConnector(), &stubGenerator{reply: equalSplit})

	reports, mode, err := o.Preprocess(context.Background(), models.SourceYouthPolicy, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ModeMock, mode)
	assert.Len(t, reports, 3)
	assert.Len(t, products.upserted, 3)
	for _, p := range products.upserted {
		assert.True(t, strings.HasPrefix(p.ID, "YOUTH"))
	}
}
