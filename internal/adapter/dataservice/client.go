// Package dataservice is the HTTP client for the Disaster Data Service: the
// seven read endpoints polled by the sync engine and the route, coverage and
// image comparison endpoints used by the planner.
package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/observability"
)

// DefaultRetryAfter applies when a rate-limited response omits retry_after.
const DefaultRetryAfter = 60 * time.Second

// maxErrorBody bounds how much of a failed response is read into an error.
const maxErrorBody = 4 << 10

// Client talks to the Disaster Data Service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a data service client. metrics may be nil.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Zones fetches the disaster zones.
func (c *Client) Zones(ctx context.Context) ([]domain.Zone, error) {
	var resp struct {
		Zones []domain.Zone `json:"zones"`
	}
	if err := c.getJSON(ctx, "/api/disaster-zones", "zones", &resp); err != nil {
		return nil, err
	}
	return resp.Zones, nil
}

// FloodAreas fetches the flood areas.
func (c *Client) FloodAreas(ctx context.Context) ([]domain.FloodArea, error) {
	var resp struct {
		FloodAreas []domain.FloodArea `json:"flood_areas"`
	}
	if err := c.getJSON(ctx, "/api/flood-areas", "flood_areas", &resp); err != nil {
		return nil, err
	}
	return resp.FloodAreas, nil
}

// Infrastructure fetches the infrastructure damage reports.
func (c *Client) Infrastructure(ctx context.Context) ([]domain.InfrastructureSite, error) {
	var resp struct {
		Infrastructure []domain.InfrastructureSite `json:"infrastructure"`
	}
	if err := c.getJSON(ctx, "/api/infrastructure-damage", "infrastructure", &resp); err != nil {
		return nil, err
	}
	return resp.Infrastructure, nil
}

// Displacement fetches the population displacement zones.
func (c *Client) Displacement(ctx context.Context) ([]domain.DisplacementArea, error) {
	var resp struct {
		Zones []domain.DisplacementArea `json:"displacement_zones"`
	}
	if err := c.getJSON(ctx, "/api/population-displacement", "displacement", &resp); err != nil {
		return nil, err
	}
	return resp.Zones, nil
}

// Alerts fetches the active alerts.
func (c *Client) Alerts(ctx context.Context) ([]domain.Alert, error) {
	var resp struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	if err := c.getJSON(ctx, "/api/alerts", "alerts", &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// SocialFeed fetches the sampled social media posts.
func (c *Client) SocialFeed(ctx context.Context) ([]domain.SocialPost, error) {
	var resp struct {
		Posts []domain.SocialPost `json:"posts"`
	}
	if err := c.getJSON(ctx, "/api/social-feed-sample", "social_feed", &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

// Statistics fetches the aggregate statistics object as-is.
func (c *Client) Statistics(ctx context.Context) (domain.Statistics, error) {
	var stats domain.Statistics
	if err := c.getJSON(ctx, "/api/statistics", "statistics", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Route requests a route between two points. Path is the straight segment
// origin to destination; the encoded road geometry is kept in Polyline.
func (c *Client) Route(ctx context.Context, origin, dest domain.Coordinates) (domain.RouteResult, error) {
	body, err := json.Marshal(routeRequest{
		OriginLat: origin.Lat,
		OriginLon: origin.Lon,
		DestLat:   dest.Lat,
		DestLon:   dest.Lon,
	})
	if err != nil {
		return domain.RouteResult{}, fmt.Errorf("encode route request: %w", err)
	}

	var resp routeResponse
	if err := c.do(ctx, http.MethodPost, "/api/here/route", "route", "application/json", bytes.NewReader(body), &resp); err != nil {
		return domain.RouteResult{}, err
	}
	if !resp.Success {
		return domain.RouteResult{}, fmt.Errorf("route: %s", resp.failure())
	}
	return domain.RouteResult{
		Path:            []domain.Coordinates{origin, dest},
		DistanceKm:      resp.DistanceKm,
		DurationMinutes: resp.DurationMinutes,
		Polyline:        resp.Polyline,
	}, nil
}

// Coverage requests the reachability isolines around a rescue station. Each
// isoline keeps its first polygon's raw vertices; rank follows response order.
func (c *Client) Coverage(ctx context.Context, origin domain.Coordinates) (domain.CoverageResult, error) {
	params := url.Values{
		"lat": {formatCoord(origin.Lat)},
		"lon": {formatCoord(origin.Lon)},
	}

	var resp coverageResponse
	if err := c.do(ctx, http.MethodGet, "/api/here/rescue-coverage?"+params.Encode(), "coverage", "", nil, &resp); err != nil {
		return domain.CoverageResult{}, err
	}
	if !resp.Success {
		return domain.CoverageResult{}, fmt.Errorf("coverage: %s", resp.failure())
	}

	return resp.result(origin), nil
}

// CompareImage uploads a disaster image for change analysis against the
// reference imagery at a location. A throttled request returns a
// *domain.RateLimitError and is never retried here.
func (c *Client) CompareImage(ctx context.Context, at domain.Coordinates, zoom int, img domain.ImageUpload) (domain.ImageComparison, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", img.Filename)
	if err != nil {
		return domain.ImageComparison{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img.Content); err != nil {
		return domain.ImageComparison{}, fmt.Errorf("write form file: %w", err)
	}
	params := url.Values{
		"lat":  {formatCoord(at.Lat)},
		"lon":  {formatCoord(at.Lon)},
		"zoom": {strconv.Itoa(zoom)},
	}
	for _, k := range []string{"lat", "lon", "zoom"} {
		if err := mw.WriteField(k, params.Get(k)); err != nil {
			return domain.ImageComparison{}, fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return domain.ImageComparison{}, fmt.Errorf("close multipart body: %w", err)
	}

	var resp compareResponse
	if err := c.do(ctx, http.MethodPost, "/api/here/compare-disaster-image?"+params.Encode(), "compare_image", mw.FormDataContentType(), &buf, &resp); err != nil {
		return domain.ImageComparison{}, err
	}
	if rl := resp.rateLimit(); rl != nil {
		return domain.ImageComparison{}, rl
	}
	if !resp.Success {
		return domain.ImageComparison{}, fmt.Errorf("compare image: %s", resp.failure())
	}

	location := at
	if resp.Location != nil {
		location = *resp.Location
	}
	return domain.ImageComparison{
		Location:         location,
		ChangePercentage: resp.ChangePercentage,
		ChangesDetected:  resp.ChangesDetected,
		Analysis:         resp.Analysis,
		Severity:         domain.ChangeSeverity(resp.ChangePercentage),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path, endpoint string, dst any) error {
	return c.do(ctx, http.MethodGet, path, endpoint, "", nil, dst)
}

func (c *Client) do(ctx context.Context, method, path, endpoint, contentType string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("data service error", "endpoint", endpoint, "status", resp.StatusCode)
		return statusError(endpoint, resp.StatusCode, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// statusError converts a non-200 response into an error, recognizing the
// service's rate-limit body and its {"detail": ...} error envelope.
func statusError(endpoint string, status int, raw []byte) error {
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		if rl := body.rateLimit(); rl != nil {
			return rl
		}
		if status == http.StatusTooManyRequests {
			return &domain.RateLimitError{RetryAfter: DefaultRetryAfter, Message: body.failure()}
		}
		if msg := body.failure(); msg != "" {
			return fmt.Errorf("data service %s: status %d: %s", endpoint, status, msg)
		}
	}
	if status == http.StatusTooManyRequests {
		return &domain.RateLimitError{RetryAfter: DefaultRetryAfter, Message: string(raw)}
	}
	return fmt.Errorf("data service %s: status %d: %s", endpoint, status, raw)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	var rl *domain.RateLimitError
	return errors.As(err, &rl)
}
