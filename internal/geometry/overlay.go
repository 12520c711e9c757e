package geometry

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/observability"
)

// Minimum sizes for renderable shapes.
const (
	MinRingVertices = 3
	MinRoutePoints  = 2
)

// tierLabels names the reachability tier of an isoline by rank.
var tierLabels = []string{"5 min", "10 min", "15 min"}

// TierLabel returns the display label for an isoline rank.
func TierLabel(rank int) string {
	if rank >= 0 && rank < len(tierLabels) {
		return tierLabels[rank]
	}
	return fmt.Sprintf("tier %d", rank)
}

// CoverageRing is a validated isoline ring in renderer order.
type CoverageRing struct {
	Rank     int                  `json:"rank"`
	Label    string               `json:"label"`
	Vertices []domain.Coordinates `json:"vertices"`
}

// CoverageOverlay is the renderer-safe form of a CoverageResult.
type CoverageOverlay struct {
	Origin domain.Coordinates `json:"origin"`
	Rings  []CoverageRing     `json:"rings"`
}

// RouteOverlay is the renderer-safe form of a RouteResult.
type RouteOverlay struct {
	Path            []domain.Coordinates `json:"path"`
	DistanceKm      float64              `json:"distance_km"`
	DurationMinutes float64              `json:"duration_minutes"`
}

// Validator sanitizes externally supplied geometry before it reaches a
// renderer. Bad entries are dropped and logged; validation never fails the
// whole request.
type Validator struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewValidator creates a Validator. metrics may be nil.
func NewValidator(logger *slog.Logger, metrics *observability.Metrics) *Validator {
	return &Validator{logger: logger, metrics: metrics}
}

// Vertex parses one raw [lng, lat] pair and returns it in renderer order.
// It rejects anything that is not a two-element numeric pair within WGS84
// bounds.
func Vertex(raw json.RawMessage) (domain.Coordinates, error) {
	var pair []any
	if err := json.Unmarshal(raw, &pair); err != nil {
		return domain.Coordinates{}, fmt.Errorf("vertex is not an array: %w", err)
	}
	if len(pair) != 2 {
		return domain.Coordinates{}, fmt.Errorf("vertex has %d elements, want 2", len(pair))
	}
	lng, ok := pair[0].(float64)
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("vertex longitude %v is not a number", pair[0])
	}
	lat, ok := pair[1].(float64)
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("vertex latitude %v is not a number", pair[1])
	}
	c := domain.Coordinates{Lat: lat, Lon: lng}
	if !c.Valid() {
		return domain.Coordinates{}, fmt.Errorf("vertex [%v, %v] out of range", lng, lat)
	}
	return c, nil
}

// Ring validates one polygon ring. Invalid vertices are dropped; the ring
// is accepted only if at least MinRingVertices remain.
func (v *Validator) Ring(raw []json.RawMessage) ([]domain.Coordinates, bool) {
	vertices := make([]domain.Coordinates, 0, len(raw))
	for i, r := range raw {
		c, err := Vertex(r)
		if err != nil {
			v.logger.Debug("dropping vertex", "index", i, "error", err)
			v.reject("vertex")
			continue
		}
		vertices = append(vertices, c)
	}
	if len(vertices) < MinRingVertices {
		return nil, false
	}
	return vertices, true
}

// Coverage validates every isoline of a coverage result. Degenerate rings
// are skipped individually so the remaining rings still render.
func (v *Validator) Coverage(res domain.CoverageResult) CoverageOverlay {
	overlay := CoverageOverlay{Origin: res.Origin, Rings: []CoverageRing{}}
	for i, iso := range res.Isolines {
		vertices, ok := v.Ring(iso.Polygon)
		if !ok {
			v.logger.Warn("skipping isoline with too few valid vertices",
				"index", i,
				"rank", iso.Rank,
				"raw_vertices", len(iso.Polygon),
			)
			v.reject("ring")
			continue
		}
		label := iso.RangeLabel
		if label == "" {
			label = TierLabel(iso.Rank)
		}
		overlay.Rings = append(overlay.Rings, CoverageRing{Rank: iso.Rank, Label: label, Vertices: vertices})
	}
	return overlay
}

// Route validates a route path. Out-of-range points are dropped; the route
// is accepted only if at least MinRoutePoints remain.
func (v *Validator) Route(path []domain.Coordinates) ([]domain.Coordinates, bool) {
	valid := make([]domain.Coordinates, 0, len(path))
	for i, p := range path {
		if !p.Valid() {
			v.logger.Debug("dropping route point", "index", i, "lat", p.Lat, "lon", p.Lon)
			continue
		}
		valid = append(valid, p)
	}
	if len(valid) < MinRoutePoints {
		v.logger.Warn("skipping route with too few valid points", "points", len(path), "valid", len(valid))
		v.reject("route")
		return nil, false
	}
	return valid, true
}

// RouteOverlay validates a route result. It returns false when the path
// cannot be rendered.
func (v *Validator) RouteOverlay(res domain.RouteResult) (RouteOverlay, bool) {
	path, ok := v.Route(res.Path)
	if !ok {
		return RouteOverlay{}, false
	}
	return RouteOverlay{Path: path, DistanceKm: res.DistanceKm, DurationMinutes: res.DurationMinutes}, true
}

func (v *Validator) reject(kind string) {
	if v.metrics != nil {
		v.metrics.GeometryRejections.WithLabelValues(kind).Inc()
	}
}
