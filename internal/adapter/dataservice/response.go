package dataservice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/disaster-console/internal/domain"
)

// Data service wire types.

type routeRequest struct {
	OriginLat float64 `json:"origin_lat"`
	OriginLon float64 `json:"origin_lon"`
	DestLat   float64 `json:"destination_lat"`
	DestLon   float64 `json:"destination_lon"`
}

// errorBody covers the failure shapes the service returns: FastAPI's
// {"detail": ...}, {"error": ...} and the rate-limit body carrying
// status "rate_limited" and retry_after in seconds.
type errorBody struct {
	Detail     json.RawMessage `json:"detail,omitempty"`
	Error      string          `json:"error,omitempty"`
	Message    string          `json:"message,omitempty"`
	Status     string          `json:"status,omitempty"`
	RetryAfter *float64        `json:"retry_after,omitempty"`
}

func (b errorBody) rateLimit() *domain.RateLimitError {
	if b.Status != "rate_limited" {
		return nil
	}
	retry := DefaultRetryAfter
	if b.RetryAfter != nil && *b.RetryAfter > 0 {
		retry = time.Duration(*b.RetryAfter * float64(time.Second))
	}
	return &domain.RateLimitError{RetryAfter: retry, Message: b.failure()}
}

func (b errorBody) failure() string {
	switch {
	case b.Error != "":
		return b.Error
	case len(b.Detail) > 0:
		var s string
		if json.Unmarshal(b.Detail, &s) == nil {
			return s
		}
		return string(b.Detail)
	case b.Message != "":
		return b.Message
	default:
		return "request was not successful"
	}
}

type routeResponse struct {
	errorBody
	Success         bool    `json:"success"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
	Polyline        string  `json:"polyline"`
}

type coverageResponse struct {
	errorBody
	Success  bool          `json:"success"`
	Origin   originBody    `json:"origin"`
	Isolines []isolineBody `json:"isolines"`
}

// result converts the response into a CoverageResult. Each isoline keeps its
// first polygon's raw vertices; rank follows response order.
func (r coverageResponse) result(requested domain.Coordinates) domain.CoverageResult {
	out := domain.CoverageResult{Origin: r.Origin.coordinates(requested), Isolines: make([]domain.Isoline, 0, len(r.Isolines))}
	for i, iso := range r.Isolines {
		var polygon []json.RawMessage
		if len(iso.Polygons) > 0 {
			polygon = iso.Polygons[0]
		}
		out.Isolines = append(out.Isolines, domain.Isoline{
			Rank:          i,
			RangeValue:    iso.RangeValue,
			RangeLabel:    iso.RangeLabel,
			TransportMode: iso.TransportMode,
			Polygon:       polygon,
		})
	}
	return out
}

// ParseCoverage decodes a saved rescue-coverage response body. requested is
// used as the origin when the body carries none.
func ParseCoverage(data []byte, requested domain.Coordinates) (domain.CoverageResult, error) {
	var resp coverageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.CoverageResult{}, fmt.Errorf("decode coverage response: %w", err)
	}
	return resp.result(requested), nil
}

// originBody accepts both {"lat", "lon"} and {"location": {"lat", "lng"}}.
type originBody struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Location *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

func (o originBody) coordinates(requested domain.Coordinates) domain.Coordinates {
	switch {
	case o.Lat != nil && o.Lon != nil:
		return domain.Coordinates{Lat: *o.Lat, Lon: *o.Lon}
	case o.Location != nil:
		return domain.Coordinates{Lat: o.Location.Lat, Lon: o.Location.Lng}
	default:
		return requested
	}
}

type isolineBody struct {
	RangeValue    float64             `json:"range_value"`
	RangeLabel    string              `json:"range_label"`
	RangeType     string              `json:"range_type"`
	TransportMode string              `json:"transport_mode"`
	Polygons      [][]json.RawMessage `json:"polygons"`
}

type compareResponse struct {
	errorBody
	Success          bool                `json:"success"`
	Location         *domain.Coordinates `json:"location"`
	ChangePercentage float64             `json:"change_percentage"`
	ChangesDetected  map[string]bool     `json:"changes_detected"`
	Analysis         string              `json:"analysis"`
}
