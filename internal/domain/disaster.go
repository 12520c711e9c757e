package domain

import (
	"strings"
	"time"
)

// Coordinates is a WGS84 point as served by the Disaster Data Service.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies inside the WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// LatLng returns the point in the renderer's [lat, lng] order.
func (c Coordinates) LatLng() [2]float64 {
	return [2]float64{c.Lat, c.Lon}
}

// LngLat returns the point in GeoJSON [lng, lat] order.
func (c Coordinates) LngLat() []float64 {
	return []float64{c.Lon, c.Lat}
}

// Zone is a geographically located disaster-impact record.
type Zone struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	Severity        Severity     `json:"severity"`
	DamageScore     float64      `json:"damage_score"`
	AffectedAreaKm2 float64      `json:"affected_area_km2"`
	LastUpdated     string       `json:"last_updated,omitempty"`
}

// Renderable reports whether the zone can be placed on the map.
func (z Zone) Renderable() bool { return renderable(z.Coordinates) }

// FloodArea is a flooded location on the floods layer.
type FloodArea struct {
	ID                 string       `json:"id"`
	Location           string       `json:"location"`
	Coordinates        *Coordinates `json:"coordinates,omitempty"`
	WaterLevelM        float64      `json:"water_level_m"`
	AffectedPopulation int          `json:"affected_population"`
	Status             string       `json:"status"`
	EvacuationRequired bool         `json:"evacuation_required"`
	Timestamp          string       `json:"timestamp"`
}

// Renderable reports whether the flood area can be placed on the map.
func (f FloodArea) Renderable() bool { return renderable(f.Coordinates) }

// InfrastructureSite is a damaged facility on the infrastructure layer.
type InfrastructureSite struct {
	ID                  string       `json:"id"`
	Type                string       `json:"type"`
	Name                string       `json:"name"`
	Coordinates         *Coordinates `json:"coordinates,omitempty"`
	DamageLevel         string       `json:"damage_level"`
	Operational         bool         `json:"operational"`
	Priority            string       `json:"priority"`
	EstimatedRepairDays int          `json:"estimated_repair_days"`
	Timestamp           string       `json:"timestamp"`
}

// Renderable reports whether the site can be placed on the map.
func (s InfrastructureSite) Renderable() bool { return renderable(s.Coordinates) }

// DisplacementArea is a population displacement record on the displacement layer.
type DisplacementArea struct {
	ID              string       `json:"id"`
	Area            string       `json:"area"`
	Coordinates     *Coordinates `json:"coordinates,omitempty"`
	DisplacedCount  int          `json:"displaced_count"`
	ShelterCapacity int          `json:"shelter_capacity"`
	Needs           []string     `json:"needs,omitempty"`
	Status          string       `json:"status"`
	Timestamp       string       `json:"timestamp"`
}

// Renderable reports whether the area can be placed on the map.
func (d DisplacementArea) Renderable() bool { return renderable(d.Coordinates) }

// Alert is an operator-facing incident alert. Alerts are not deduplicated.
type Alert struct {
	ID                 string       `json:"id"`
	Type               string       `json:"type"`
	Category           string       `json:"category,omitempty"`
	Severity           Severity     `json:"severity"`
	Location           string       `json:"location"`
	Coordinates        *Coordinates `json:"coordinates,omitempty"`
	Description        string       `json:"description"`
	AffectedPopulation int          `json:"affected_population,omitempty"`
	Status             string       `json:"status"`
	Timestamp          string       `json:"timestamp"`
	PriorityScore      float64      `json:"priority_score,omitempty"`
}

// SocialPost is a sampled social-media report.
type SocialPost struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Urgency   string `json:"urgency"`
	Verified  bool   `json:"verified"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Location  string `json:"location,omitempty"`
}

// Statistics is a flat mapping of named aggregate counters.
type Statistics map[string]any

func renderable(c *Coordinates) bool {
	return c != nil && c.Valid()
}

// timestampLayouts covers RFC 3339 and the zone-less ISO 8601 form the
// data service emits.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a service timestamp. Zone-less values are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
