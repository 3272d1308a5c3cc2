package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"fino-ai/internal/models"
	"fino-ai/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSourcesConfig(bankURL string) *config.SourcesConfig {
	return &config.SourcesConfig{
		Mode:       "live",
		BankAPIURL: bankURL,
		BankAPIKey: "test-key",
		Timeout:    2 * time.Second,
		CacheTTL:   time.Minute,
		CacheSize:  8,
	}
}

func TestHTTPConnectorFetch(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"productId":"BANK001","productName":"예금","interestRate":3.5}]}`))
	}))
	defer srv.Close()

	conn := NewHTTPConnector(testSourcesConfig(srv.URL), zap.NewNop())
	require.Equal(t, models.ModeLive, conn.Mode())

	payloads, err := conn.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "BANK001", payloads[0]["productId"])
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestHTTPConnectorCachesResponses(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"data":[{"productId":"BANK001","productName":"예금","interestRate":3.5}]}`))
	}))
	defer srv.Close()

	conn := NewHTTPConnector(testSourcesConfig(srv.URL), zap.NewNop())

	_, err := conn.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.NoError(t, err)
	_, err = conn.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.NoError(t, err)

	assert.Equal(t, 1, hits)
}

func TestHTTPConnectorUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	conn := NewHTTPConnector(testSourcesConfig(srv.URL), zap.NewNop())

	_, err := conn.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.Error(t, err)

	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Unauthorized, ce.Kind)
	assert.False(t, ce.Retryable())
}

func TestHTTPConnectorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	conn := NewHTTPConnector(testSourcesConfig(srv.URL), zap.NewNop())

	_, err := conn.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.Error(t, err)

	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Unreachable, ce.Kind)
	assert.True(t, ce.Retryable())
}

func TestHTTPConnectorUnreachableHost(t *testing.T) {
	conn := NewHTTPConnector(testSourcesConfig("http://127.0.0.1:1"), zap.NewNop())

	_, err := conn.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.Error(t, err)

	var ce *ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Unreachable, ce.Kind)
}

func TestHTTPConnectorMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `<html>definitely not json</html>`},
		{"missing data field", `{"items":[]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			conn := NewHTTPConnector(testSourcesConfig(srv.URL), zap.NewNop())

			_, err := conn.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
			require.Error(t, err)

			var ce *ConnectorError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, MalformedResponse, ce.Kind)
		})
	}
}

func TestMockConnectorIsDeterministic(t *testing.T) {
	mock := NewMockConnector()
	require.Equal(t, models.ModeMock, mock.Mode())

	first, err := mock.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.NoError(t, err)
	second, err := mock.Fetch(context.Background(), models.SourceBankProduct, url.Values{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 5)
}

func TestMockConnectorFilters(t *testing.T) {
	mock := NewMockConnector()

	deposits, err := mock.Fetch(context.Background(), models.SourceBankProduct, url.Values{"product_type": []string{"DEPOSIT"}})
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "BANK001", deposits[0]["productId"])

	policies, err := mock.Fetch(context.Background(), models.SourceYouthPolicy, url.Values{"age": []string{"36"}})
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "YOUTH002", policies[0]["policyId"])
}

func TestMockConnectorNormalizesCleanly(t *testing.T) {
	// Every fixture payload must survive normalization; the mock dataset is
	// the fallback of last resort and may never fail the pipeline.
	mock := NewMockConnector()

	for _, source := range []models.SourceType{models.SourceBankProduct, models.SourceYouthPolicy} {
		payloads, err := mock.Fetch(context.Background(), source, url.Values{})
		require.NoError(t, err)
		for _, res := range NormalizeBatch(payloads, source) {
			assert.NoError(t, res.Err, "payload %d of %s", res.Index, source)
		}
	}
}
