package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/platform/obs"
	"city-distance-service/internal/ports"
)

const defaultBaseURL = "http://router.project-osrm.org"

// Source is the provenance tag written to distance cache entries.
const Source = "osrm"

// OSRMClient fetches driving routes from an OSRM instance. It requests no
// turn-by-turn geometry; only the first route's distance and duration are
// used. Safe for concurrent use.
type OSRMClient struct {
	session *http.Client
	baseURL string
	metrics *obs.Metrics
}

func NewOSRMClient(baseURL string, metrics *obs.Metrics) *OSRMClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if metrics == nil {
		metrics = obs.NewMetricsForTesting()
	}

	return &OSRMClient{
		session: &http.Client{Timeout: 25 * time.Second},
		baseURL: baseURL,
		metrics: metrics,
	}
}

type routeResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// Route resolves one origin/destination coordinate pair to a road distance.
// A 200 response with an empty routes array is found=false with a nil
// error; callers treat it like a transient failure.
func (c *OSRMClient) Route(ctx context.Context, origin, destination domain.Coordinates) (ports.RouteResult, bool, error) {
	endpoint := fmt.Sprintf("%s/route/v1/driving/%s;%s",
		c.baseURL, formatCoords(origin), formatCoords(destination))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.RouteResult{}, false, fmt.Errorf("route: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	q := url.Values{}
	q.Set("overview", "false")
	req.URL.RawQuery = q.Encode()

	resp, err := c.session.Do(req)
	if err != nil {
		c.metrics.RouteRequests.WithLabelValues("error").Inc()
		return ports.RouteResult{}, false, fmt.Errorf("route: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RouteRequests.WithLabelValues("error").Inc()
		return ports.RouteResult{}, false, fmt.Errorf("route: unexpected status %d", resp.StatusCode)
	}

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.metrics.RouteRequests.WithLabelValues("error").Inc()
		return ports.RouteResult{}, false, fmt.Errorf("route: decode response: %w", err)
	}

	if len(decoded.Routes) == 0 {
		c.metrics.RouteRequests.WithLabelValues("empty").Inc()
		return ports.RouteResult{}, false, nil
	}

	// The first route in the array is authoritative.
	c.metrics.RouteRequests.WithLabelValues("success").Inc()
	return ports.RouteResult{
		DistanceMeters:  decoded.Routes[0].Distance,
		DurationSeconds: decoded.Routes[0].Duration,
	}, true, nil
}

func formatCoords(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}
