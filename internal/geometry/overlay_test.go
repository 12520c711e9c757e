package geometry

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawRing(t *testing.T, vertices ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(vertices))
	for i, v := range vertices {
		require.True(t, json.Valid([]byte(v)), "fixture %q", v)
		out[i] = json.RawMessage(v)
	}
	return out
}

func TestVertex_SwapsToLatLng(t *testing.T) {
	c, err := Vertex(json.RawMessage(`[72.8777, 19.0760]`))
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lat: 19.0760, Lon: 72.8777}, c)
	assert.Equal(t, [2]float64{19.0760, 72.8777}, c.LatLng())
}

func TestVertex_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not an array", `{"lat": 1, "lng": 2}`},
		{"one element", `[72.8]`},
		{"three elements", `[72.8, 19.0, 5]`},
		{"string element", `["72.8", 19.0]`},
		{"null element", `[null, 19.0]`},
		{"longitude out of range", `[180.5, 19.0]`},
		{"latitude out of range", `[72.8, -90.01]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Vertex(json.RawMessage(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestValidator_Ring(t *testing.T) {
	v := NewValidator(discardLogger(), nil)

	t.Run("exactly three valid vertices retained", func(t *testing.T) {
		ring, ok := v.Ring(rawRing(t, `[72.80, 19.00]`, `[72.90, 19.00]`, `[72.85, 19.10]`))
		require.True(t, ok)
		assert.Equal(t, []domain.Coordinates{
			{Lat: 19.00, Lon: 72.80},
			{Lat: 19.00, Lon: 72.90},
			{Lat: 19.10, Lon: 72.85},
		}, ring)
	})

	t.Run("two valid vertices rejected", func(t *testing.T) {
		_, ok := v.Ring(rawRing(t, `[72.80, 19.00]`, `[72.90, 19.00]`))
		assert.False(t, ok)
	})

	t.Run("bad vertices filtered before counting", func(t *testing.T) {
		_, ok := v.Ring(rawRing(t, `[72.80, 19.00]`, `[200, 19.00]`, `[72.85]`, `[72.90, 19.00]`))
		assert.False(t, ok)

		ring, ok := v.Ring(rawRing(t, `[72.80, 19.00]`, `[200, 19.00]`, `[72.90, 19.00]`, `"x"`, `[72.85, 19.10]`))
		require.True(t, ok)
		assert.Len(t, ring, 3)
	})

	t.Run("empty ring rejected", func(t *testing.T) {
		_, ok := v.Ring(nil)
		assert.False(t, ok)
	})
}

func TestValidator_CoverageSkipsBadRingsOnly(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	v := NewValidator(discardLogger(), metrics)

	res := domain.CoverageResult{
		Origin: domain.Coordinates{Lat: 19.07, Lon: 72.87},
		Isolines: []domain.Isoline{
			{Rank: 0, Polygon: rawRing(t, `[72.80, 19.00]`, `[72.90, 19.00]`, `[72.85, 19.10]`)},
			{Rank: 1, Polygon: rawRing(t, `[72.80, 19.00]`, `["bad", 19.00]`)},
			{Rank: 2, RangeLabel: "15 minutes", Polygon: rawRing(t, `[72.70, 18.90]`, `[73.00, 18.90]`, `[73.00, 19.20]`, `[72.70, 19.20]`)},
		},
	}

	overlay := v.Coverage(res)

	assert.Equal(t, res.Origin, overlay.Origin)
	require.Len(t, overlay.Rings, 2)
	assert.Equal(t, 0, overlay.Rings[0].Rank)
	assert.Equal(t, "5 min", overlay.Rings[0].Label)
	assert.Equal(t, 2, overlay.Rings[1].Rank)
	assert.Equal(t, "15 minutes", overlay.Rings[1].Label)
	assert.Len(t, overlay.Rings[1].Vertices, 4)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeometryRejections.WithLabelValues("ring")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GeometryRejections.WithLabelValues("vertex")), 0)
}

func TestValidator_Route(t *testing.T) {
	v := NewValidator(discardLogger(), nil)

	path, ok := v.Route([]domain.Coordinates{{Lat: 19.07, Lon: 72.87}, {Lat: 19.08, Lon: 72.88}})
	require.True(t, ok)
	assert.Len(t, path, 2)

	_, ok = v.Route([]domain.Coordinates{{Lat: 19.07, Lon: 72.87}})
	assert.False(t, ok, "single point")

	_, ok = v.Route([]domain.Coordinates{{Lat: 19.07, Lon: 72.87}, {Lat: 95, Lon: 72.88}})
	assert.False(t, ok, "out-of-range point dropped below minimum")

	overlay, ok := v.RouteOverlay(domain.RouteResult{
		Path:            []domain.Coordinates{{Lat: 19.07, Lon: 72.87}, {Lat: 19.08, Lon: 72.88}},
		DistanceKm:      2.4,
		DurationMinutes: 7,
	})
	require.True(t, ok)
	assert.Equal(t, 2.4, overlay.DistanceKm)
	assert.Equal(t, 7.0, overlay.DurationMinutes)
}

func TestRingFeature_ClosesRing(t *testing.T) {
	f := RingFeature(CoverageRing{
		Rank:  0,
		Label: "5 min",
		Vertices: []domain.Coordinates{
			{Lat: 19.00, Lon: 72.80},
			{Lat: 19.00, Lon: 72.90},
			{Lat: 19.10, Lon: 72.85},
		},
	})

	require.True(t, f.Geometry.IsPolygon())
	ring := f.Geometry.Polygon[0]
	require.Len(t, ring, 4)
	assert.Equal(t, []float64{72.80, 19.00}, ring[0])
	assert.Equal(t, ring[0], ring[3])
	assert.Equal(t, "coverage", f.Properties["layer"])
}

func TestRouteFeature_UsesLngLat(t *testing.T) {
	f := RouteFeature(RouteOverlay{Path: []domain.Coordinates{{Lat: 19.07, Lon: 72.87}, {Lat: 19.08, Lon: 72.88}}})

	require.True(t, f.Geometry.IsLineString())
	assert.Equal(t, []float64{72.87, 19.07}, f.Geometry.LineString[0])
}
