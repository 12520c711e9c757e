package console

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/disaster-console/internal/config"
	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/events"
	"github.com/couchcryptid/disaster-console/internal/geometry"
	"github.com/couchcryptid/disaster-console/internal/notify"
)

var validate = validator.New()

// RouteRequest names the zones a route runs between.
type RouteRequest struct {
	OriginID      string `json:"origin_id" validate:"required"`
	DestinationID string `json:"destination_id" validate:"required"`
}

// CoverageRequest names the zone used as a rescue station.
type CoverageRequest struct {
	StationID string `json:"station_id" validate:"required"`
}

// CompareRequest is a disaster image submitted for change analysis.
type CompareRequest struct {
	Filename string  `validate:"-"`
	Image    []byte  `validate:"required,min=1"`
	Lat      float64 `validate:"latitude"`
	Lon      float64 `validate:"longitude"`
	Zoom     int     `validate:"min=1,max=20"`
}

// Inline messages for rejected input.
var inputMessages = map[string]string{
	"OriginID":      "Please select both origin and destination",
	"DestinationID": "Please select both origin and destination",
	"StationID":     "Please select a rescue station",
	"Image":         "Please select an image to compare",
	"Lat":           "Latitude must be between -90 and 90",
	"Lon":           "Longitude must be between -180 and 180",
	"Zoom":          "Zoom must be between 1 and 20",
}

// checkInput validates req and converts the first failure into an
// ErrInvalidInput carrying the operator-facing message.
func checkInput(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := inputMessages[verrs[0].Field()]; ok {
			return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
		}
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// RoutePlan is the current route between two zones. Path is nil when the
// returned geometry could not be rendered.
type RoutePlan struct {
	OriginID        string               `json:"origin_id"`
	DestinationID   string               `json:"destination_id"`
	DistanceKm      float64              `json:"distance_km"`
	DurationMinutes float64              `json:"duration_minutes"`
	Path            []domain.Coordinates `json:"path"`
	Renderable      bool                 `json:"renderable"`
}

// RequestRoute asks the data service for a route between two zones and
// stores the validated result as the route overlay.
func (c *Console) RequestRoute(ctx context.Context, req RouteRequest) (RoutePlan, error) {
	if err := checkInput(req); err != nil {
		return RoutePlan{}, err
	}
	snap := c.Snapshot()
	origin, err := zoneLocation(snap, req.OriginID)
	if err != nil {
		return RoutePlan{}, err
	}
	dest, err := zoneLocation(snap, req.DestinationID)
	if err != nil {
		return RoutePlan{}, err
	}

	res, err := c.planner.Route(ctx, origin, dest)
	if err != nil {
		return RoutePlan{}, c.upstreamFailure("Route calculation failed", "route", err)
	}
	if c.opts.RouteGeometry == config.RouteGeometryPolyline && res.Polyline != "" {
		path, err := geometry.Decode(res.Polyline)
		if err != nil {
			c.logger.Warn("route polyline rejected, using straight path", "error", err)
		} else {
			res.Path = path
		}
	}

	plan := RoutePlan{
		OriginID:        req.OriginID,
		DestinationID:   req.DestinationID,
		DistanceKm:      res.DistanceKm,
		DurationMinutes: res.DurationMinutes,
	}
	if overlay, ok := c.validator.RouteOverlay(res); ok {
		plan.Path = overlay.Path
		plan.Renderable = true
	}

	c.mu.Lock()
	c.route = &plan
	c.mu.Unlock()

	c.logger.Info("route calculated",
		"origin", req.OriginID,
		"destination", req.DestinationID,
		"distance_km", res.DistanceKm,
		"points", len(plan.Path),
	)
	c.notify(notify.Notification{
		Type:      notify.Success,
		Title:     "Route calculated",
		Message:   fmt.Sprintf("%.1f km, about %.0f min", res.DistanceKm, math.Round(res.DurationMinutes)),
		AutoClose: true,
	})
	c.publish(events.KindOverlays, c.Overlays())
	return plan, nil
}

// Route returns the current route, if any.
func (c *Console) Route() (RoutePlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.route == nil {
		return RoutePlan{}, false
	}
	return *c.route, true
}

// RequestCoverage asks the data service for the reachability isolines around
// a rescue station and stores the validated rings as the coverage overlay.
func (c *Console) RequestCoverage(ctx context.Context, req CoverageRequest) (geometry.CoverageOverlay, error) {
	if err := checkInput(req); err != nil {
		return geometry.CoverageOverlay{}, err
	}
	origin, err := zoneLocation(c.Snapshot(), req.StationID)
	if err != nil {
		return geometry.CoverageOverlay{}, err
	}

	res, err := c.planner.Coverage(ctx, origin)
	if err != nil {
		return geometry.CoverageOverlay{}, c.upstreamFailure("Coverage calculation failed", "coverage", err)
	}
	overlay := c.validator.Coverage(res)

	c.mu.Lock()
	c.coverage = &overlay
	c.mu.Unlock()

	c.logger.Info("coverage calculated",
		"station", req.StationID,
		"isolines", len(res.Isolines),
		"rings", len(overlay.Rings),
	)
	c.notify(notify.Notification{
		Type:      notify.Success,
		Title:     "Rescue coverage calculated",
		Message:   fmt.Sprintf("%d coverage zones", len(overlay.Rings)),
		AutoClose: true,
	})
	c.publish(events.KindOverlays, c.Overlays())
	return overlay, nil
}

// Coverage returns the current coverage overlay, if any.
func (c *Console) Coverage() (geometry.CoverageOverlay, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.coverage == nil {
		return geometry.CoverageOverlay{}, false
	}
	return *c.coverage, true
}

// ClearOverlays removes the route and coverage overlays.
func (c *Console) ClearOverlays() {
	c.mu.Lock()
	c.route = nil
	c.coverage = nil
	c.mu.Unlock()
	c.publish(events.KindOverlays, c.Overlays())
}

// CompareImage submits a disaster image for change analysis. A rate-limited
// request is reported to the operator with the suggested backoff and is not
// retried.
func (c *Console) CompareImage(ctx context.Context, req CompareRequest) (domain.ImageComparison, error) {
	if err := checkInput(req); err != nil {
		return domain.ImageComparison{}, err
	}

	at := domain.Coordinates{Lat: req.Lat, Lon: req.Lon}
	res, err := c.comparer.CompareImage(ctx, at, req.Zoom, domain.ImageUpload{Filename: req.Filename, Content: req.Image})
	if err != nil {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			c.logger.Warn("image comparison rate limited", "retry_after", rl.RetryAfter)
			c.notify(notify.Notification{
				Type:      notify.Error,
				Title:     "Imagery rate limit reached",
				Message:   fmt.Sprintf("Please try again in %d seconds.", int(rl.RetryAfter.Seconds())),
				AutoClose: true,
			})
			return domain.ImageComparison{}, err
		}
		return domain.ImageComparison{}, c.upstreamFailure("Image comparison failed", "compare_image", err)
	}
	if res.Severity == "" {
		res.Severity = domain.ChangeSeverity(res.ChangePercentage)
	}

	c.logger.Info("image compared", "change_percentage", res.ChangePercentage, "severity", res.Severity)
	c.notify(notify.Notification{
		Type:      notify.Success,
		Title:     "Image analysis complete",
		Message:   fmt.Sprintf("%.1f%% change detected (%s)", res.ChangePercentage, res.Severity),
		AutoClose: true,
	})
	return res, nil
}

// upstreamFailure notifies the operator and wraps err with ErrUpstream.
func (c *Console) upstreamFailure(title, op string, err error) error {
	c.logger.Error("data service request failed", "op", op, "error", err)
	c.notify(notify.Notification{
		Type:      notify.Error,
		Title:     title,
		Message:   err.Error(),
		AutoClose: true,
	})
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

func zoneLocation(snap *domain.Snapshot, id string) (domain.Coordinates, error) {
	zone, ok := snap.ZoneByID(id)
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("%w: %s", ErrZoneNotFound, id)
	}
	if !zone.Renderable() {
		return domain.Coordinates{}, fmt.Errorf("%w: %s", ErrNoCoordinates, id)
	}
	return *zone.Coordinates, nil
}
