package fwc

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hab-status-etl/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, maxRetries int) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		maxRetries: maxRetries,
		retryDelay: time.Millisecond,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

const featuresBody = `{
  "features": [
    {"attributes": {"HAB_ID": 10452, "LOCATION": " Siesta Key ", "County": "Sarasota",
      "Abundance": "medium (>100,000 to 1,000,000 cells/L)", "SAMPLE_DATE": 1754654400000,
      "LATITUDE": 27.26, "LONGITUDE": -82.55, "ExportDate": 1754740800000}},
    {"attributes": {"HAB_ID": "LIDO-7", "LOCATION": "Lido Key", "County": "Sarasota",
      "Abundance": "not present/background", "SAMPLE_DATE": 1754568000000,
      "LATITUDE": 27.31, "LONGITUDE": -82.58}},
    {"attributes": {"HAB_ID": 99, "LOCATION": "Undated", "Abundance": "low", "SAMPLE_DATE": null}}
  ]
}`

func TestClient_FetchSamples_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1=1", q.Get("where"))
		assert.Equal(t, "*", q.Get("outFields"))
		assert.Equal(t, "4326", q.Get("outSR"))
		assert.Equal(t, "json", q.Get("f"))
		assert.Equal(t, "SAMPLE_DATE DESC", q.Get("orderByFields"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(featuresBody))
	}))
	defer srv.Close()

	samples, err := testClient(srv.URL, 0).FetchSamples(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2, "undated feature is skipped")

	siesta := samples[0]
	assert.Equal(t, "10452", siesta.Key)
	assert.Equal(t, "Siesta Key", siesta.LocationLabel)
	assert.Equal(t, "Sarasota", siesta.County)
	assert.Equal(t, "medium (>100,000 to 1,000,000 cells/L)", siesta.RawAbundance)
	assert.Equal(t, time.Date(2025, time.August, 8, 12, 0, 0, 0, time.UTC), siesta.SampledAt)
	assert.InDelta(t, 27.26, siesta.Lat, 1e-9)
	assert.InDelta(t, -82.55, siesta.Lon, 1e-9)

	assert.Equal(t, "LIDO-7", samples[1].Key)
}

func TestClient_FetchSamples_ArcGISError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid query parameters"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).FetchSamples(context.Background())
	require.ErrorIs(t, err, ErrQuery)
	assert.Contains(t, err.Error(), "Invalid query parameters")
	assert.EqualValues(t, 1, calls.Load(), "query errors are not retried")
}

func TestClient_FetchSamples_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	samples, err := c.FetchSamples(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.EqualValues(t, 3, calls.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(c.metrics.FetchRetries), 1e-9)
}

func TestClient_FetchSamples_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).FetchSamples(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "status 503")
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_FetchSamples_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).FetchSamples(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_FetchSamples_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL, 5).FetchSamples(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_FetchSamples_CancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	c.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchSamples(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRawID(t *testing.T) {
	assert.Equal(t, "42", rawID([]byte(`42`)))
	assert.Equal(t, "abc", rawID([]byte(`" abc "`)))
	assert.Empty(t, rawID([]byte(`null`)))
	assert.Empty(t, rawID(nil))
}

func TestDecodeSamples(t *testing.T) {
	samples, err := DecodeSamples(strings.NewReader(featuresBody))
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	_, err = DecodeSamples(strings.NewReader(`{"error":{"code":498,"message":"Invalid token"}}`))
	require.ErrorIs(t, err, ErrQuery)
}
