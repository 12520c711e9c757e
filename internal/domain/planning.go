package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RouteResult is a route between two points as returned by the data service.
// It is produced per request and never stored in the snapshot.
type RouteResult struct {
	Path            []Coordinates `json:"path"`
	DistanceKm      float64       `json:"distance_km"`
	DurationMinutes float64       `json:"duration_minutes"`
	Polyline        string        `json:"polyline,omitempty"`
}

// Isoline is one reachability polygon. Rank selects the visual tier
// (0 = 5-minute reachability). Polygon holds the raw [lng, lat] vertices
// exactly as received; they are untrusted until validated.
type Isoline struct {
	Rank          int               `json:"rank"`
	RangeValue    float64           `json:"range_value,omitempty"`
	RangeLabel    string            `json:"range_label,omitempty"`
	TransportMode string            `json:"transport_mode,omitempty"`
	Polygon       []json.RawMessage `json:"polygon"`
}

// CoverageResult is the rescue-coverage response for one origin.
type CoverageResult struct {
	Origin   Coordinates `json:"origin"`
	Isolines []Isoline   `json:"isolines"`
}

// ImageComparison is the change analysis between an uploaded disaster image
// and the reference imagery at a location.
type ImageComparison struct {
	Location         Coordinates     `json:"location"`
	ChangePercentage float64         `json:"change_percentage"`
	ChangesDetected  map[string]bool `json:"changes_detected"`
	Analysis         string          `json:"analysis"`
	Severity         string          `json:"severity"`
}

// ImageUpload is the disaster image submitted for comparison.
type ImageUpload struct {
	Filename string
	Content  []byte
}

// RateLimitError reports that a downstream provider throttled the request.
// Callers surface it to the operator and must not retry automatically.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}
