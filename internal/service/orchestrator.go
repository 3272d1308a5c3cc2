package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"fino-ai/internal/models"
	"fino-ai/pkg/config"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ProductStore persists the canonical catalog. The pipeline treats stored
// rows as read-mostly reference data; an external collaborator owns them.
type ProductStore interface {
	UpsertBatch(ctx context.Context, products []*models.CanonicalProduct) error
	List(ctx context.Context, source models.SourceType, limit, offset int) ([]models.CanonicalProduct, error)
}

// PortfolioStore keeps recommendation history.
type PortfolioStore interface {
	Create(ctx context.Context, rec *models.PortfolioRecommendation) error
}

// Orchestrator sequences one recommendation request through
// Fetching -> Normalizing -> ContextBuilding -> Generating -> Parsing -> Done.
// Each request is an independent pipeline instance; the only shared state is
// the immutable configuration.
type Orchestrator struct {
	connector      Connector
	mockFallback   Connector
	builder        *ContextBuilder
	engine         Generator
	parser         *ResultParser
	productStore   ProductStore
	portfolioStore PortfolioStore
	cfg            *config.PipelineConfig
	logger         *zap.Logger
}

func NewOrchestrator(
	connector Connector,
	mockFallback Connector,
	builder *ContextBuilder,
	engine Generator,
	parser *ResultParser,
	productStore ProductStore,
	portfolioStore PortfolioStore,
	cfg *config.PipelineConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		connector:      connector,
		mockFallback:   mockFallback,
		builder:        builder,
		engine:         engine,
		parser:         parser,
		productStore:   productStore,
		portfolioStore: portfolioStore,
		cfg:            cfg,
		logger:         logger,
	}
}

// ItemReport is the per-payload outcome of a preprocessing batch.
type ItemReport struct {
	Index   int                      `json:"index"`
	Product *models.CanonicalProduct `json:"product,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Kind    string                   `json:"kind,omitempty"`
}

// Preprocess normalizes a batch of raw payloads (fetching them from the
// configured source when the batch is empty) and persists the successes.
// Individual failures are reported alongside successes, never aborting the
// batch.
func (o *Orchestrator) Preprocess(ctx context.Context, source models.SourceType, payloads []RawPayload) ([]ItemReport, models.SourceMode, error) {
	mode := o.connector.Mode()

	if len(payloads) == 0 {
		fetched, fetchMode, err := o.fetch(ctx, source, url.Values{})
		if err != nil {
			return nil, mode, &StageError{Stage: StageFetching, Err: err}
		}
		payloads = fetched
		mode = fetchMode
	}

	results := NormalizeBatch(payloads, source)

	reports := make([]ItemReport, len(results))
	persist := make([]*models.CanonicalProduct, 0, len(results))
	failed := 0
	for i, res := range results {
		reports[i] = ItemReport{Index: res.Index, Product: res.Product}
		if res.Err != nil {
			failed++
			reports[i].Error = res.Err.Error()
			reports[i].Kind = ErrorKind(res.Err)
			continue
		}
		persist = append(persist, res.Product)
	}

	if len(persist) > 0 && o.productStore != nil {
		if err := o.productStore.UpsertBatch(ctx, persist); err != nil {
			return nil, mode, &StageError{Stage: StageNormalizing, Err: err}
		}
	}

	o.logger.Info("Preprocessing batch completed",
		zap.String("source", string(source)),
		zap.String("mode", string(mode)),
		zap.Int("normalized", len(persist)),
		zap.Int("failed", failed),
	)

	return reports, mode, nil
}

// Recommend runs the full pipeline for one user profile.
func (o *Orchestrator) Recommend(ctx context.Context, profile *models.UserProfile) (*models.PortfolioRecommendation, error) {
	// Fetching
	query := url.Values{}
	bankRaw, mode, err := o.fetch(ctx, models.SourceBankProduct, query)
	if err != nil {
		return nil, &StageError{Stage: StageFetching, Err: err}
	}

	policyQuery := url.Values{"age": []string{strconv.Itoa(profile.Age)}}
	policyRaw, policyMode, err := o.fetch(ctx, models.SourceYouthPolicy, policyQuery)
	if err != nil {
		return nil, &StageError{Stage: StageFetching, Err: err}
	}
	if policyMode == models.ModeMock {
		mode = models.ModeMock
	}

	// Normalizing: per-payload failures are collected, siblings proceed.
	candidates := make([]models.CanonicalProduct, 0, len(bankRaw)+len(policyRaw))
	dropped := 0
	for _, batch := range []struct {
		source models.SourceType
		raws   []RawPayload
	}{
		{models.SourceBankProduct, bankRaw},
		{models.SourceYouthPolicy, policyRaw},
	} {
		for _, res := range NormalizeBatch(batch.raws, batch.source) {
			if res.Err != nil {
				dropped++
				o.logger.Warn("Payload dropped during normalization",
					zap.String("source", string(batch.source)),
					zap.Int("index", res.Index),
					zap.Error(res.Err),
				)
				continue
			}
			candidates = append(candidates, *res.Product)
		}
	}
	if len(candidates) == 0 {
		return nil, &StageError{Stage: StageNormalizing, Err: &BuildError{Kind: NoEligibleCandidates}}
	}

	// ContextBuilding: terminal on an empty eligible set, not retryable.
	rc, err := o.builder.Build(profile, candidates)
	if err != nil {
		return nil, &StageError{Stage: StageContextBuilding, Err: err}
	}

	// Generating: the engine owns its own bounded retry; a failure here is
	// terminal for the request.
	raw, err := o.engine.Generate(ctx, rc)
	if err != nil {
		return nil, &StageError{Stage: StageGenerating, Err: err}
	}

	// Parsing: a malformed answer is reported, never silently re-prompted.
	rec, err := o.parser.Parse(raw, rc.CandidateProducts, profile.UserID)
	if err != nil {
		return nil, &StageError{Stage: StageParsing, Err: err}
	}

	rec.SourceMode = mode
	rec.TemplateVersion = o.cfg.TemplateVersion

	// Done: hand the portfolio to the history collaborator. Persistence is
	// not part of the pipeline contract, so a storage error only logs.
	if o.portfolioStore != nil {
		if err := o.portfolioStore.Create(ctx, rec); err != nil {
			o.logger.Error("Failed to persist recommendation history", zap.Error(err))
		}
	}

	o.logger.Info("Recommendation completed",
		zap.String("user_id", profile.UserID.String()),
		zap.String("mode", string(mode)),
		zap.Int("items", len(rec.Items)),
		zap.Int("dropped_payloads", dropped),
	)

	return rec, nil
}

// fetch applies the documented retry-then-fallback rule: transient connector
// failures are retried with bounded backoff against the configured source; only
// after the retry budget is spent does a configured mock fallback take over.
// Credential failures are terminal immediately.
func (o *Orchestrator) fetch(ctx context.Context, source models.SourceType, query url.Values) ([]RawPayload, models.SourceMode, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(o.cfg.RetryLimit)),
		ctx,
	)

	var payloads []RawPayload
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		fetched, err := o.connector.Fetch(ctx, source, query)
		if err != nil {
			var connErr *ConnectorError
			if errors.As(err, &connErr) && connErr.Retryable() {
				o.logger.Warn("Source fetch failed, retrying",
					zap.String("source", string(source)),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return err
			}
			return backoff.Permanent(err)
		}
		payloads = fetched
		return nil
	}, policy)
	if err == nil {
		return payloads, o.connector.Mode(), nil
	}

	var connErr *ConnectorError
	if errors.As(err, &connErr) && connErr.Retryable() && o.mockFallback != nil {
		o.logger.Warn("Live source unavailable after retries, falling back to mock dataset",
			zap.String("source", string(source)),
			zap.String("kind", string(connErr.Kind)),
			zap.Int("attempts", attempt),
		)
		payloads, mockErr := o.mockFallback.Fetch(ctx, source, query)
		if mockErr != nil {
			return nil, models.ModeMock, mockErr
		}
		return payloads, models.ModeMock, nil
	}

	return nil, o.connector.Mode(), err
}
