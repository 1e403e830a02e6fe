package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/platform/obs"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Source is the provenance tag written to coordinate cache entries.
const Source = "nominatim"

// NominatimClient resolves free-text place queries against a Nominatim
// instance. Safe for concurrent use.
type NominatimClient struct {
	session   *http.Client
	baseURL   string
	userAgent string
	metrics   *obs.Metrics
}

func NewNominatimClient(baseURL, userAgent string, metrics *obs.Metrics) (*NominatimClient, error) {
	if userAgent == "" {
		// Nominatim's usage policy rejects requests without an identifying agent.
		return nil, errors.New("nominatim: user agent is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if metrics == nil {
		metrics = obs.NewMetricsForTesting()
	}

	return &NominatimClient{
		session:   &http.Client{Timeout: 20 * time.Second},
		baseURL:   baseURL,
		userAgent: userAgent,
		metrics:   metrics,
	}, nil
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves one query to coordinates. An empty result set is
// found=false with a nil error; it is not retried upstream.
func (c *NominatimClient) Geocode(ctx context.Context, query string) (domain.Coordinates, bool, error) {
	endpoint := c.baseURL + "/search"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("geocode: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := c.session.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, false, fmt.Errorf("geocode %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, false, fmt.Errorf("geocode %q: unexpected status %d", query, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, false, fmt.Errorf("geocode %q: decode response: %w", query, err)
	}

	if len(results) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return domain.Coordinates{}, false, nil
	}

	// Nominatim serializes coordinates as strings.
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, false, fmt.Errorf("geocode %q: parse lat: %w", query, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.Coordinates{}, false, fmt.Errorf("geocode %q: parse lon: %w", query, err)
	}

	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return domain.Coordinates{Lon: lon, Lat: lat}, true, nil
}
