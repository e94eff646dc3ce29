// Package fwc reads HAB samples from the Florida Fish and Wildlife
// Conservation Commission ArcGIS feature service.
package fwc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/hab-status-etl/internal/domain"
	"github.com/couchcryptid/hab-status-etl/internal/observability"
)

// ErrQuery is returned when the feature service answers with an ArcGIS error body.
var ErrQuery = errors.New("arcgis query error")

const (
	defaultRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second
)

// Client implements pipeline.SampleSource against the FWC HAB feature service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an FWC client. maxRetries is the number of extra
// attempts after a failed request.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		retryDelay: defaultRetryDelay,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchSamples returns every sample the service currently exposes, newest first.
// Features without a sample date are skipped.
func (c *Client) FetchSamples(ctx context.Context) ([]domain.Sample, error) {
	params := url.Values{
		"where":          {"1=1"},
		"outFields":      {"*"},
		"outSR":          {"4326"},
		"f":              {"json"},
		"orderByFields":  {"SAMPLE_DATE DESC"},
		"returnGeometry": {"false"},
	}
	fullURL := c.baseURL + "?" + params.Encode()

	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.FetchRetries.Inc()
			c.logger.Warn("retrying sample fetch", "attempt", attempt, "error", lastErr, "delay", delay)
			if !sharedretry.SleepWithContext(ctx, delay) {
				return nil, ctx.Err()
			}
			delay = sharedretry.NextBackoff(delay, maxRetryDelay)
		}

		samples, err := c.doRequest(ctx, fullURL)
		if err == nil {
			return samples, nil
		}
		if errors.Is(err, ErrQuery) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch samples after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sample request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fwc API error: status %d: %s", resp.StatusCode, body)
	}

	samples, skipped, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		c.logger.Debug("features without sample date skipped", "count", skipped)
	}
	return samples, nil
}

// DecodeSamples parses an ArcGIS query response body, such as one saved from
// the feature service, into samples.
func DecodeSamples(r io.Reader) ([]domain.Sample, error) {
	samples, _, err := decodeResponse(r)
	return samples, err
}

func decodeResponse(r io.Reader) ([]domain.Sample, int, error) {
	var qr queryResponse
	if err := json.NewDecoder(r).Decode(&qr); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	if qr.Error != nil {
		return nil, 0, fmt.Errorf("%w: code %d: %s", ErrQuery, qr.Error.Code, qr.Error.Message)
	}

	samples := make([]domain.Sample, 0, len(qr.Features))
	skipped := 0
	for _, f := range qr.Features {
		s, ok := f.Attributes.toSample()
		if !ok {
			skipped++
			continue
		}
		samples = append(samples, s)
	}
	return samples, skipped, nil
}

// ArcGIS query response types.

type queryResponse struct {
	Features []feature `json:"features"`
	Error    *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type feature struct {
	Attributes attributes `json:"attributes"`
}

type attributes struct {
	HABID      json.RawMessage `json:"HAB_ID"`
	Location   string          `json:"LOCATION"`
	County     string          `json:"County"`
	Abundance  string          `json:"Abundance"`
	SampleDate *int64          `json:"SAMPLE_DATE"` // epoch milliseconds
	Latitude   float64         `json:"LATITUDE"`
	Longitude  float64         `json:"LONGITUDE"`
}

func (a attributes) toSample() (domain.Sample, bool) {
	if a.SampleDate == nil {
		return domain.Sample{}, false
	}
	return domain.Sample{
		Key:           rawID(a.HABID),
		LocationLabel: strings.TrimSpace(a.Location),
		County:        strings.TrimSpace(a.County),
		RawAbundance:  strings.TrimSpace(a.Abundance),
		SampledAt:     time.UnixMilli(*a.SampleDate).UTC(),
		Lat:           a.Latitude,
		Lon:           a.Longitude,
	}, true
}

// rawID renders HAB_ID, which the service has published both as a number
// and as a string.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return string(raw)
}
