package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"fino-ai/internal/models"
	"fino-ai/pkg/config"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Connector fetches raw listings for one source type. Two implementations
// share the contract: HTTPConnector against the configured upstreams and
// MockConnector over the bundled dataset. Mode selection is configuration,
// never inferred from failures; the orchestrator decides fallback explicitly.
type Connector interface {
	Fetch(ctx context.Context, source models.SourceType, query url.Values) ([]RawPayload, error)
	Mode() models.SourceMode
}

type upstream struct {
	baseURL string
	apiKey  string
	path    string
}

// HTTPConnector performs authenticated GETs against the bank-product and
// youth-policy upstreams. Responses are cached briefly: the catalog is
// read-mostly shared data and every recommendation request re-reads it.
type HTTPConnector struct {
	client    *http.Client
	upstreams map[models.SourceType]upstream
	cache     *expirable.LRU[string, []RawPayload]
	logger    *zap.Logger
}

func NewHTTPConnector(cfg *config.SourcesConfig, logger *zap.Logger) *HTTPConnector {
	return &HTTPConnector{
		client: &http.Client{Timeout: cfg.Timeout},
		upstreams: map[models.SourceType]upstream{
			models.SourceBankProduct: {baseURL: cfg.BankAPIURL, apiKey: cfg.BankAPIKey, path: "/products"},
			models.SourceYouthPolicy: {baseURL: cfg.YouthAPIURL, apiKey: cfg.YouthAPIKey, path: "/policies"},
		},
		cache:  expirable.NewLRU[string, []RawPayload](cfg.CacheSize, nil, cfg.CacheTTL),
		logger: logger,
	}
}

func (c *HTTPConnector) Mode() models.SourceMode { return models.ModeLive }

func (c *HTTPConnector) Fetch(ctx context.Context, source models.SourceType, query url.Values) ([]RawPayload, error) {
	up, ok := c.upstreams[source]
	if !ok {
		return nil, &ConnectorError{Kind: MalformedResponse, Err: fmt.Errorf("no upstream configured for %q", source)}
	}

	cacheKey := string(source) + "?" + query.Encode()
	if cached, ok := c.cache.Get(cacheKey); ok {
		c.logger.Debug("Upstream cache hit", zap.String("source", string(source)))
		return cached, nil
	}

	reqURL := up.baseURL + up.path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &ConnectorError{Kind: Unreachable, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+up.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ConnectorError{Kind: Unreachable, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		return nil, &ConnectorError{Kind: Unauthorized, Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(body))}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, &ConnectorError{Kind: Unreachable, Err: fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(body))}
	}

	// Upstreams wrap listings in a {"data": [...]} envelope.
	var envelope struct {
		Data []RawPayload `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &ConnectorError{Kind: MalformedResponse, Err: err}
	}
	if envelope.Data == nil {
		return nil, &ConnectorError{Kind: MalformedResponse, Err: errors.New("response missing data field")}
	}

	c.cache.Add(cacheKey, envelope.Data)
	c.logger.Info("Fetched upstream listings",
		zap.String("source", string(source)),
		zap.Int("count", len(envelope.Data)),
	)

	return envelope.Data, nil
}
