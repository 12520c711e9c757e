package console

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/geometry"
)

// Overlays renders the visible layers of the current snapshot plus the route
// and coverage overlays as a GeoJSON FeatureCollection. Records without
// usable coordinates are left out.
func (c *Console) Overlays() *geojson.FeatureCollection {
	snap := c.Snapshot()

	c.mu.Lock()
	layers := c.layers.Clone()
	selected := c.selected
	route := c.route
	coverage := c.coverage
	c.mu.Unlock()

	fc := geojson.NewFeatureCollection()
	if layers[domain.LayerZones] {
		for _, z := range snap.Zones {
			if !z.Renderable() {
				continue
			}
			fc.AddFeature(geometry.PointFeature(*z.Coordinates, map[string]any{
				"layer":        string(domain.LayerZones),
				"id":           z.ID,
				"name":         z.Name,
				"severity":     string(z.Severity),
				"damage_score": z.DamageScore,
				"selected":     z.ID == selected,
			}))
		}
	}
	if layers[domain.LayerFloods] {
		for _, f := range snap.FloodAreas {
			if !f.Renderable() {
				continue
			}
			fc.AddFeature(geometry.PointFeature(*f.Coordinates, map[string]any{
				"layer":         string(domain.LayerFloods),
				"id":            f.ID,
				"location":      f.Location,
				"water_level_m": f.WaterLevelM,
			}))
		}
	}
	if layers[domain.LayerInfrastructure] {
		for _, s := range snap.Infrastructure {
			if !s.Renderable() {
				continue
			}
			fc.AddFeature(geometry.PointFeature(*s.Coordinates, map[string]any{
				"layer":       string(domain.LayerInfrastructure),
				"id":          s.ID,
				"type":        s.Type,
				"operational": s.Operational,
			}))
		}
	}
	if layers[domain.LayerDisplacement] {
		for _, d := range snap.Displacement {
			if !d.Renderable() {
				continue
			}
			fc.AddFeature(geometry.PointFeature(*d.Coordinates, map[string]any{
				"layer":           string(domain.LayerDisplacement),
				"id":              d.ID,
				"area":            d.Area,
				"displaced_count": d.DisplacedCount,
			}))
		}
	}

	if route != nil && route.Renderable {
		fc.AddFeature(geometry.RouteFeature(geometry.RouteOverlay{
			Path:            route.Path,
			DistanceKm:      route.DistanceKm,
			DurationMinutes: route.DurationMinutes,
		}))
	}
	if coverage != nil {
		for _, ring := range coverage.Rings {
			fc.AddFeature(geometry.RingFeature(ring))
		}
	}
	return fc
}
