// Package provider fetches current environmental measurements from the
// upstream conditions API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/envsense/insight-engine/internal/domain"
	"github.com/envsense/insight-engine/internal/observability"
)

// Client implements engine.MeasurementProvider over the upstream HTTP API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a measurement client for the upstream conditions API.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Measurements fetches the current raw readings for a location.
func (c *Client) Measurements(ctx context.Context, loc domain.Location) ([]domain.RawMeasurement, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(loc.Lat, 'f', 4, 64)},
		"lon": {strconv.FormatFloat(loc.Lon, 'f', 4, 64)},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/current?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("conditions request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.ProviderRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("conditions API error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.ProviderRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.metrics.ProviderRequests.WithLabelValues("success").Inc()

	measurements := make([]domain.RawMeasurement, 0, len(payload.Measurements))
	for _, m := range payload.Measurements {
		measurements = append(measurements, domain.RawMeasurement{
			Source:    payload.Source,
			Metric:    domain.MetricType(m.Metric),
			Value:     m.Value,
			Unit:      m.Unit,
			Timestamp: m.Timestamp,
			Location:  loc,
		})
	}
	return measurements, nil
}

// Upstream API response types.

type response struct {
	Source       string        `json:"source"`
	Measurements []measurement `json:"measurements"`
}

type measurement struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}
