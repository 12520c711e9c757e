// Package console holds the operator session: zone feedback, layer
// visibility, theme, zone selection and the current route and coverage
// overlays. It reads the canonical snapshot from the sync engine and never
// writes to it.
package console

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-console/internal/config"
	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/events"
	"github.com/couchcryptid/disaster-console/internal/geometry"
	"github.com/couchcryptid/disaster-console/internal/notify"
)

// SelectionNoticeDuration is how long the zone selection notice stays visible.
const SelectionNoticeDuration = 3 * time.Second

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrZoneNotFound  = errors.New("zone not found")
	ErrNoCoordinates = errors.New("zone has no coordinates")
	ErrUpstream      = errors.New("data service request failed")
)

// SnapshotSource provides the current canonical snapshot.
type SnapshotSource interface {
	Snapshot() *domain.Snapshot
}

// Notifier surfaces transient messages to the operator.
type Notifier interface {
	Enqueue(n notify.Notification) notify.Notification
}

// Publisher broadcasts session changes to renderers.
type Publisher interface {
	Publish(kind events.Kind, at time.Time, payload any)
}

// Options configures a Console. Notifier and Events are optional.
type Options struct {
	RouteGeometry string
	Notifier      Notifier
	Events        Publisher
}

// Console is the operator session over the live snapshot.
type Console struct {
	snapshots SnapshotSource
	planner   domain.Planner
	comparer  domain.ImageComparer
	validator *geometry.Validator
	opts      Options
	clock     clockwork.Clock
	logger    *slog.Logger

	mu       sync.Mutex
	feedback domain.Feedback
	layers   domain.Layers
	theme    domain.Theme
	selected string
	route    *RoutePlan
	coverage *geometry.CoverageOverlay
}

// New creates a Console with every layer visible and the dark theme.
func New(snapshots SnapshotSource, planner domain.Planner, comparer domain.ImageComparer, validator *geometry.Validator, opts Options, clock clockwork.Clock, logger *slog.Logger) *Console {
	if opts.RouteGeometry == "" {
		opts.RouteGeometry = config.RouteGeometryStraight
	}
	return &Console{
		snapshots: snapshots,
		planner:   planner,
		comparer:  comparer,
		validator: validator,
		opts:      opts,
		clock:     clock,
		logger:    logger,
		feedback:  domain.Feedback{},
		layers:    domain.DefaultLayers(),
		theme:     domain.ThemeDark,
	}
}

// Snapshot returns the current canonical snapshot.
func (c *Console) Snapshot() *domain.Snapshot {
	return c.snapshots.Snapshot()
}

// Priorities ranks the snapshot's zones with the session feedback applied.
func (c *Console) Priorities(expanded bool) domain.PriorityView {
	return domain.Priorities(c.Snapshot().Zones, c.Feedback(), expanded)
}

// Feedback returns a copy of the submitted zone feedback.
func (c *Console) Feedback() domain.Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(domain.Feedback, len(c.feedback))
	for k, v := range c.feedback {
		out[k] = v
	}
	return out
}

// SetFeedback records a feedback code for a zone. An empty code clears it.
func (c *Console) SetFeedback(zoneID, code string) error {
	if code != "" && !domain.ValidFeedback(code) {
		return fmt.Errorf("%w: feedback code %q must be 1, 2, 3 or 4", ErrInvalidInput, code)
	}
	zone, ok := c.Snapshot().ZoneByID(zoneID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zoneID)
	}

	c.mu.Lock()
	if code == "" {
		delete(c.feedback, zoneID)
	} else {
		c.feedback[zoneID] = code
	}
	c.mu.Unlock()

	c.logger.Info("zone feedback recorded", "zone_id", zoneID, "code", code)
	if code != "" {
		c.notify(notify.Notification{
			Type:      notify.Success,
			Title:     "Feedback submitted",
			Message:   fmt.Sprintf("Thank you for your feedback on %s", zone.Name),
			AutoClose: true,
		})
	}
	return nil
}

// SelectZone marks a zone as selected and announces it.
func (c *Console) SelectZone(zoneID string) (domain.Zone, error) {
	zone, ok := c.Snapshot().ZoneByID(zoneID)
	if !ok {
		return domain.Zone{}, fmt.Errorf("%w: %s", ErrZoneNotFound, zoneID)
	}

	c.mu.Lock()
	c.selected = zone.ID
	c.mu.Unlock()

	c.notify(notify.Notification{
		Type:      notify.Info,
		Message:   fmt.Sprintf("Viewing %s - %s severity", zone.Name, zone.Severity),
		AutoClose: true,
		Duration:  SelectionNoticeDuration,
	})
	c.publish(events.KindOverlays, c.Overlays())
	return zone, nil
}

// Selected returns the selected zone id, if any.
func (c *Console) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SearchZones matches zones by id or name.
func (c *Console) SearchZones(query string) []domain.Zone {
	return domain.SearchZones(c.Snapshot().Zones, query)
}

// RecentAlerts returns the newest alerts. A non-positive limit uses
// domain.DefaultRecentAlerts.
func (c *Console) RecentAlerts(limit int) []domain.Alert {
	if limit <= 0 {
		limit = domain.DefaultRecentAlerts
	}
	return domain.RecentAlerts(c.Snapshot().Alerts, limit)
}

// Layers returns the layer visibility.
func (c *Console) Layers() domain.Layers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.Clone()
}

// ToggleLayer flips the visibility of one map layer.
func (c *Console) ToggleLayer(name string) (domain.Layers, error) {
	layer, err := domain.ParseLayer(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	c.mu.Lock()
	c.layers = c.layers.Toggle(layer)
	c.mu.Unlock()

	c.logger.Debug("layer toggled", "layer", layer)
	c.publish(events.KindOverlays, c.Overlays())
	return c.Layers(), nil
}

// Theme returns the current colour scheme.
func (c *Console) Theme() domain.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// SetTheme switches the colour scheme and publishes the change to map
// renderers.
func (c *Console) SetTheme(name string) (domain.Theme, error) {
	theme, err := domain.ParseTheme(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	c.mu.Lock()
	changed := c.theme != theme
	c.theme = theme
	c.mu.Unlock()

	if changed {
		c.publish(events.KindTheme, theme)
	}
	return theme, nil
}

func (c *Console) notify(n notify.Notification) {
	if c.opts.Notifier != nil {
		c.opts.Notifier.Enqueue(n)
	}
}

func (c *Console) publish(kind events.Kind, payload any) {
	if c.opts.Events != nil {
		c.opts.Events.Publish(kind, c.clock.Now(), payload)
	}
}
