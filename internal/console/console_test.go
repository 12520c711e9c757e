package console_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-console/internal/config"
	"github.com/couchcryptid/disaster-console/internal/console"
	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/events"
	"github.com/couchcryptid/disaster-console/internal/geometry"
	"github.com/couchcryptid/disaster-console/internal/notify"
	"github.com/couchcryptid/disaster-console/internal/observability"
)

var (
	mumbai = domain.Coordinates{Lat: 19.0760, Lon: 72.8777}
	bandra = domain.Coordinates{Lat: 19.0544, Lon: 72.8406}
)

// --- mocks ---

type staticSnapshot struct{ snap *domain.Snapshot }

func (s staticSnapshot) Snapshot() *domain.Snapshot { return s.snap }

type fakePlanner struct {
	route         domain.RouteResult
	coverage      domain.CoverageResult
	err           error
	routeCalls    int
	coverageCalls int
	gotOrigin     domain.Coordinates
	gotDest       domain.Coordinates
}

func (f *fakePlanner) Route(_ context.Context, origin, dest domain.Coordinates) (domain.RouteResult, error) {
	f.routeCalls++
	f.gotOrigin, f.gotDest = origin, dest
	return f.route, f.err
}

func (f *fakePlanner) Coverage(_ context.Context, _ domain.Coordinates) (domain.CoverageResult, error) {
	f.coverageCalls++
	return f.coverage, f.err
}

type fakeComparer struct {
	res   domain.ImageComparison
	err   error
	calls int
}

func (f *fakeComparer) CompareImage(_ context.Context, _ domain.Coordinates, _ int, _ domain.ImageUpload) (domain.ImageComparison, error) {
	f.calls++
	return f.res, f.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Enqueue(n notify.Notification) notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return n
}

func (r *recordingNotifier) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[len(r.sent)-1]
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fixture struct {
	console  *console.Console
	planner  *fakePlanner
	comparer *fakeComparer
	notifier *recordingNotifier
	bus      *events.Bus
	metrics  *observability.Metrics
}

func testSnapshot() *domain.Snapshot {
	snap := domain.EmptySnapshot()
	snap.Zones = []domain.Zone{
		{ID: "zone_a", Name: "Andheri East", Severity: domain.SeverityHigh, DamageScore: 0.5, Coordinates: &bandra},
		{ID: "zone_b", Name: "Bandra West", Severity: domain.SeverityCritical, DamageScore: 0.3, Coordinates: &mumbai},
		{ID: "zone_c", Name: "Colaba", Severity: domain.SeverityHigh, DamageScore: 0.9},
	}
	snap.FloodAreas = []domain.FloodArea{{ID: "flood_1", Location: "Kurla", Coordinates: &mumbai}}
	snap.Alerts = []domain.Alert{
		{ID: "old", Timestamp: "2024-06-01T10:00:00Z"},
		{ID: "new", Timestamp: "2024-06-01T11:00:00Z"},
	}
	snap.LastSuccessfulSync = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return snap
}

func newFixture(t *testing.T, routeGeometry string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		planner:  &fakePlanner{},
		comparer: &fakeComparer{},
		notifier: &recordingNotifier{},
		bus:      events.NewBus(nil),
		metrics:  observability.NewMetricsForTesting(),
	}
	f.console = console.New(
		staticSnapshot{snap: testSnapshot()},
		f.planner,
		f.comparer,
		geometry.NewValidator(logger, f.metrics),
		console.Options{RouteGeometry: routeGeometry, Notifier: f.notifier, Events: f.bus},
		clockwork.NewFakeClock(),
		logger,
	)
	t.Cleanup(f.bus.Close)
	return f
}

// --- session state ---

func TestConsole_PrioritiesApplyFeedback(t *testing.T) {
	f := newFixture(t, "")

	ids := func(v domain.PriorityView) []string {
		out := make([]string, len(v.Zones))
		for i, z := range v.Zones {
			out[i] = z.ID
		}
		return out
	}
	assert.Equal(t, []string{"zone_b", "zone_c", "zone_a"}, ids(f.console.Priorities(false)))

	require.NoError(t, f.console.SetFeedback("zone_c", domain.FeedbackCritical))
	view := f.console.Priorities(false)
	assert.Equal(t, []string{"zone_c", "zone_b", "zone_a"}, ids(view))
	assert.Equal(t, domain.FeedbackCritical, view.Zones[0].Feedback)
	assert.Equal(t, notify.Success, f.notifier.last().Type)

	require.NoError(t, f.console.SetFeedback("zone_c", ""))
	assert.Equal(t, []string{"zone_b", "zone_c", "zone_a"}, ids(f.console.Priorities(false)))
}

func TestConsole_SetFeedbackRejects(t *testing.T) {
	f := newFixture(t, "")

	assert.ErrorIs(t, f.console.SetFeedback("zone_a", "5"), console.ErrInvalidInput)
	assert.ErrorIs(t, f.console.SetFeedback("missing", "4"), console.ErrZoneNotFound)
	assert.Empty(t, f.console.Feedback())
}

func TestConsole_SelectZone(t *testing.T) {
	f := newFixture(t, "")

	zone, err := f.console.SelectZone("zone_b")
	require.NoError(t, err)
	assert.Equal(t, "Bandra West", zone.Name)
	assert.Equal(t, "zone_b", f.console.Selected())

	n := f.notifier.last()
	assert.Equal(t, "Viewing Bandra West - critical severity", n.Message)
	assert.Equal(t, notify.Info, n.Type)
	assert.Equal(t, 3*time.Second, n.Duration)
	assert.True(t, n.AutoClose)

	_, err = f.console.SelectZone("nope")
	assert.ErrorIs(t, err, console.ErrZoneNotFound)
}

func TestConsole_SearchAndAlerts(t *testing.T) {
	f := newFixture(t, "")

	matches := f.console.SearchZones("BAN")
	require.Len(t, matches, 1)
	assert.Equal(t, "zone_b", matches[0].ID)
	assert.Empty(t, f.console.SearchZones("a"))

	alerts := f.console.RecentAlerts(0)
	require.Len(t, alerts, 2)
	assert.Equal(t, "new", alerts[0].ID)
	assert.Len(t, f.console.RecentAlerts(1), 1)
}

func TestConsole_ToggleLayerPublishesOverlays(t *testing.T) {
	f := newFixture(t, "")
	ch, cancel := f.bus.Subscribe(4, events.KindOverlays)
	defer cancel()

	layers, err := f.console.ToggleLayer("floods")
	require.NoError(t, err)
	assert.False(t, layers[domain.LayerFloods])
	assert.True(t, layers[domain.LayerZones])
	assert.Equal(t, events.KindOverlays, (<-ch).Kind)

	_, err = f.console.ToggleLayer("roads")
	assert.ErrorIs(t, err, console.ErrInvalidInput)
}

func TestConsole_SetThemePublishesOnChange(t *testing.T) {
	f := newFixture(t, "")
	ch, cancel := f.bus.Subscribe(4, events.KindTheme)
	defer cancel()

	assert.Equal(t, domain.ThemeDark, f.console.Theme())
	theme, err := f.console.SetTheme("light")
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeLight, theme)
	assert.Equal(t, domain.ThemeLight, (<-ch).Payload)

	_, err = f.console.SetTheme("light")
	require.NoError(t, err)
	assert.Empty(t, ch, "unchanged theme is not republished")

	_, err = f.console.SetTheme("sepia")
	assert.ErrorIs(t, err, console.ErrInvalidInput)
}

// --- route ---

func TestConsole_RequestRouteRejectsMissingSelection(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a"})
	require.ErrorIs(t, err, console.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Please select both origin and destination")
	assert.Equal(t, 0, f.planner.routeCalls, "no network call for invalid input")
}

func TestConsole_RequestRouteNeedsCoordinates(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_c"})
	assert.ErrorIs(t, err, console.ErrNoCoordinates)

	_, err = f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_x"})
	assert.ErrorIs(t, err, console.ErrZoneNotFound)
	assert.Equal(t, 0, f.planner.routeCalls)
}

func TestConsole_RequestRouteStraightPath(t *testing.T) {
	f := newFixture(t, config.RouteGeometryStraight)
	f.planner.route = domain.RouteResult{
		Path:            []domain.Coordinates{bandra, mumbai},
		DistanceKm:      5.2,
		DurationMinutes: 14.4,
		Polyline:        geometry.Encode([]domain.Coordinates{bandra, {Lat: 19.06, Lon: 72.85}, mumbai}),
	}

	plan, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_b"})
	require.NoError(t, err)
	assert.Equal(t, bandra, f.planner.gotOrigin)
	assert.Equal(t, mumbai, f.planner.gotDest)
	assert.True(t, plan.Renderable)
	assert.Equal(t, []domain.Coordinates{bandra, mumbai}, plan.Path)
	assert.Equal(t, "5.2 km, about 14 min", f.notifier.last().Message)

	current, ok := f.console.Route()
	require.True(t, ok)
	assert.Equal(t, plan, current)
}

func TestConsole_RequestRoutePolylineGeometry(t *testing.T) {
	f := newFixture(t, config.RouteGeometryPolyline)
	road := []domain.Coordinates{bandra, {Lat: 19.06, Lon: 72.85}, mumbai}
	f.planner.route = domain.RouteResult{
		Path:     []domain.Coordinates{bandra, mumbai},
		Polyline: geometry.Encode(road),
	}

	plan, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_b"})
	require.NoError(t, err)
	require.Len(t, plan.Path, 3)
	for i := range road {
		assert.InDelta(t, road[i].Lat, plan.Path[i].Lat, 1e-5)
		assert.InDelta(t, road[i].Lon, plan.Path[i].Lon, 1e-5)
	}
}

func TestConsole_RequestRouteBadPolylineFallsBack(t *testing.T) {
	f := newFixture(t, config.RouteGeometryPolyline)
	f.planner.route = domain.RouteResult{Path: []domain.Coordinates{bandra, mumbai}, Polyline: "D_xlsB"}

	plan, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_b"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Coordinates{bandra, mumbai}, plan.Path)
}

func TestConsole_RequestRouteUnrenderableIsNotFatal(t *testing.T) {
	f := newFixture(t, "")
	f.planner.route = domain.RouteResult{Path: []domain.Coordinates{bandra, {Lat: 91, Lon: 0}}, DistanceKm: 3}

	plan, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_b"})
	require.NoError(t, err)
	assert.False(t, plan.Renderable)
	assert.Nil(t, plan.Path)
	assert.Equal(t, 3.0, plan.DistanceKm)
}

func TestConsole_RequestRouteUpstreamFailure(t *testing.T) {
	f := newFixture(t, "")
	f.planner.err = errors.New("connection refused")

	_, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_b"})
	require.ErrorIs(t, err, console.ErrUpstream)
	assert.Contains(t, err.Error(), "connection refused")

	n := f.notifier.last()
	assert.Equal(t, notify.Error, n.Type)
	assert.Equal(t, "Route calculation failed", n.Title)
	_, ok := f.console.Route()
	assert.False(t, ok)
}

// --- coverage ---

func rawRing(pairs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(pairs))
	for i, p := range pairs {
		out[i] = json.RawMessage(p)
	}
	return out
}

func TestConsole_RequestCoverage(t *testing.T) {
	f := newFixture(t, "")
	f.planner.coverage = domain.CoverageResult{
		Origin: mumbai,
		Isolines: []domain.Isoline{
			{Rank: 0, Polygon: rawRing(`[72.87,19.07]`, `[72.88,19.07]`, `[72.88,19.08]`)},
			{Rank: 1, Polygon: rawRing(`[72.87,19.07]`, `[200,19.07]`, `["x",1]`)},
			{Rank: 2, Polygon: rawRing(`[72.86,19.06]`, `[72.89,19.06]`, `[72.89,19.09]`, `[72.86,19.09]`)},
		},
	}

	_, err := f.console.RequestCoverage(context.Background(), console.CoverageRequest{})
	require.ErrorIs(t, err, console.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Please select a rescue station")
	assert.Equal(t, 0, f.planner.coverageCalls)

	overlay, err := f.console.RequestCoverage(context.Background(), console.CoverageRequest{StationID: "zone_b"})
	require.NoError(t, err)
	require.Len(t, overlay.Rings, 2, "degenerate ring skipped, others kept")
	assert.Equal(t, "5 min", overlay.Rings[0].Label)
	assert.Equal(t, "15 min", overlay.Rings[1].Label)
	assert.Equal(t, domain.Coordinates{Lat: 19.07, Lon: 72.87}, overlay.Rings[0].Vertices[0])
	assert.Equal(t, "2 coverage zones", f.notifier.last().Message)

	stored, ok := f.console.Coverage()
	require.True(t, ok)
	assert.Equal(t, overlay, stored)
}

// --- image comparison ---

func TestConsole_CompareImageValidation(t *testing.T) {
	valid := console.CompareRequest{Filename: "a.png", Image: []byte{1}, Lat: 19.07, Lon: 72.87, Zoom: 15}

	tests := []struct {
		name   string
		mutate func(*console.CompareRequest)
		msg    string
	}{
		{"missing image", func(r *console.CompareRequest) { r.Image = nil }, "Please select an image"},
		{"empty image", func(r *console.CompareRequest) { r.Image = []byte{} }, "Please select an image"},
		{"latitude", func(r *console.CompareRequest) { r.Lat = 95 }, "Latitude"},
		{"longitude", func(r *console.CompareRequest) { r.Lon = -181 }, "Longitude"},
		{"zoom low", func(r *console.CompareRequest) { r.Zoom = 0 }, "Zoom"},
		{"zoom high", func(r *console.CompareRequest) { r.Zoom = 21 }, "Zoom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			req := valid
			tt.mutate(&req)

			_, err := f.console.CompareImage(context.Background(), req)
			require.ErrorIs(t, err, console.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, 0, f.comparer.calls)
		})
	}
}

func TestConsole_CompareImage(t *testing.T) {
	f := newFixture(t, "")
	f.comparer.res = domain.ImageComparison{ChangePercentage: 55, Analysis: "Severe flooding"}

	res, err := f.console.CompareImage(context.Background(), console.CompareRequest{Image: []byte{1}, Lat: 19.07, Lon: 72.87, Zoom: 15})
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeCritical, res.Severity)
	assert.Equal(t, "55.0% change detected (CRITICAL)", f.notifier.last().Message)
}

func TestConsole_CompareImageRateLimited(t *testing.T) {
	f := newFixture(t, "")
	f.comparer.err = &domain.RateLimitError{RetryAfter: 60 * time.Second, Message: "slow down"}

	_, err := f.console.CompareImage(context.Background(), console.CompareRequest{Image: []byte{1}, Lat: 0, Lon: 0, Zoom: 1})
	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.NotErrorIs(t, err, console.ErrUpstream)
	assert.Equal(t, 1, f.comparer.calls, "not retried")

	n := f.notifier.last()
	assert.Equal(t, notify.Error, n.Type)
	assert.Equal(t, "Please try again in 60 seconds.", n.Message)
	assert.Equal(t, 1, f.notifier.count())
}

// --- overlays ---

func TestConsole_Overlays(t *testing.T) {
	f := newFixture(t, "")
	f.planner.route = domain.RouteResult{Path: []domain.Coordinates{bandra, mumbai}}
	_, err := f.console.RequestRoute(context.Background(), console.RouteRequest{OriginID: "zone_a", DestinationID: "zone_b"})
	require.NoError(t, err)

	fc := f.console.Overlays()
	layers := map[string]int{}
	for _, feat := range fc.Features {
		layers[feat.PropertyMustString("layer")]++
	}
	assert.Equal(t, map[string]int{"zones": 2, "floods": 1, "route": 1}, layers,
		"zone_c has no coordinates and is left out")

	_, err = f.console.ToggleLayer("zones")
	require.NoError(t, err)
	f.console.ClearOverlays()

	fc = f.console.Overlays()
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "floods", fc.Features[0].PropertyMustString("layer"))
	assert.Equal(t, []float64{72.8777, 19.0760}, fc.Features[0].Geometry.Point, "GeoJSON uses [lng, lat]")
}
