package geometry

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/disaster-console/internal/domain"
)

// PointFeature builds a GeoJSON point for a located record.
func PointFeature(c domain.Coordinates, props map[string]any) *geojson.Feature {
	f := geojson.NewPointFeature(c.LngLat())
	for k, v := range props {
		f.SetProperty(k, v)
	}
	return f
}

// RouteFeature builds a GeoJSON LineString from a validated route overlay.
func RouteFeature(r RouteOverlay) *geojson.Feature {
	line := make([][]float64, len(r.Path))
	for i, p := range r.Path {
		line[i] = p.LngLat()
	}
	f := geojson.NewLineStringFeature(line)
	f.SetProperty("layer", "route")
	f.SetProperty("distance_km", r.DistanceKm)
	f.SetProperty("duration_minutes", r.DurationMinutes)
	return f
}

// RingFeature builds a closed GeoJSON Polygon from a validated coverage ring.
func RingFeature(r CoverageRing) *geojson.Feature {
	ring := make([][]float64, 0, len(r.Vertices)+1)
	for _, v := range r.Vertices {
		ring = append(ring, v.LngLat())
	}
	if first, last := r.Vertices[0], r.Vertices[len(r.Vertices)-1]; first != last {
		ring = append(ring, first.LngLat())
	}
	f := geojson.NewPolygonFeature([][][]float64{ring})
	f.SetProperty("layer", "coverage")
	f.SetProperty("rank", r.Rank)
	f.SetProperty("label", r.Label)
	return f
}
