package main

import (
	"fmt"

	"github.com/couchcryptid/disaster-console/internal/domain"
)

// fixtureTime is the fixed timestamp stamped on every generated record so
// responses are byte-identical across runs.
const fixtureTime = "2024-07-26T06:00:00"

type site struct {
	name string
	at   domain.Coordinates
}

var sites = []site{
	{"Mumbai Central", domain.Coordinates{Lat: 18.9690, Lon: 72.8205}},
	{"Andheri East", domain.Coordinates{Lat: 19.1136, Lon: 72.8697}},
	{"Bandra West", domain.Coordinates{Lat: 19.0596, Lon: 72.8295}},
	{"Kurla", domain.Coordinates{Lat: 19.0726, Lon: 72.8845}},
	{"Dharavi", domain.Coordinates{Lat: 19.0380, Lon: 72.8538}},
	{"Colaba", domain.Coordinates{Lat: 18.9067, Lon: 72.8147}},
	{"Chembur", domain.Coordinates{Lat: 19.0522, Lon: 72.9005}},
	{"Powai", domain.Coordinates{Lat: 19.1176, Lon: 72.9060}},
}

var severities = []domain.Severity{
	domain.SeverityCritical,
	domain.SeverityHigh,
	domain.SeverityMedium,
	domain.SeverityLow,
}

// fixtures is the complete data set served by the read endpoints.
type fixtures struct {
	zones          []domain.Zone
	floods         []domain.FloodArea
	infrastructure []domain.InfrastructureSite
	displacement   []domain.DisplacementArea
	alerts         []domain.Alert
	posts          []domain.SocialPost
	statistics     domain.Statistics
}

// buildFixtures derives every record from the site table. The last zone has
// no coordinates so renderers exercise their skip path.
func buildFixtures() fixtures {
	var f fixtures
	for i, s := range sites {
		at := s.at
		zone := domain.Zone{
			ID:              fmt.Sprintf("zone_%d", i+1),
			Name:            s.name,
			Coordinates:     &at,
			Severity:        severities[i%len(severities)],
			DamageScore:     float64(90-i*9) / 100,
			AffectedAreaKm2: float64(12 + i*3),
			LastUpdated:     fixtureTime,
		}
		if i == len(sites)-1 {
			zone.Coordinates = nil
		}
		f.zones = append(f.zones, zone)

		if i%2 == 0 {
			f.floods = append(f.floods, domain.FloodArea{
				ID:                 fmt.Sprintf("flood_%d", i/2+1),
				Location:           s.name,
				Coordinates:        offset(s.at, 0.004),
				WaterLevelM:        float64(15+i*2) / 10,
				AffectedPopulation: 5000 + i*1500,
				Status:             "active",
				EvacuationRequired: i < 4,
				Timestamp:          fixtureTime,
			})
		}

		f.infrastructure = append(f.infrastructure, domain.InfrastructureSite{
			ID:                  fmt.Sprintf("infra_%d", i+1),
			Type:                []string{"hospital", "bridge", "power_station", "road"}[i%4],
			Name:                s.name + " facility",
			Coordinates:         offset(s.at, -0.003),
			DamageLevel:         []string{"severe", "moderate", "minor"}[i%3],
			Operational:         i%3 != 0,
			Priority:            string(severities[i%len(severities)]),
			EstimatedRepairDays: 3 + i*2,
			Timestamp:           fixtureTime,
		})

		f.displacement = append(f.displacement, domain.DisplacementArea{
			ID:              fmt.Sprintf("disp_%d", i+1),
			Area:            s.name,
			Coordinates:     offset(s.at, 0.006),
			DisplacedCount:  800 + i*350,
			ShelterCapacity: 1000 + i*200,
			Needs:           []string{"water", "food", "medical"}[:1+i%3],
			Status:          "sheltered",
			Timestamp:       fixtureTime,
		})

		f.alerts = append(f.alerts, domain.Alert{
			ID:                 fmt.Sprintf("alert_%d", i+1),
			Type:               []string{"flood", "structural", "medical"}[i%3],
			Severity:           severities[i%len(severities)],
			Location:           s.name,
			Coordinates:        offset(s.at, 0),
			Description:        fmt.Sprintf("Situation report for %s", s.name),
			AffectedPopulation: 1000 * (i + 1),
			Status:             "active",
			Timestamp:          fmt.Sprintf("2024-07-26T%02d:15:00", 6-i%6),
		})

		f.posts = append(f.posts, domain.SocialPost{
			ID:        fmt.Sprintf("post_%d", i+1),
			Text:      fmt.Sprintf("Water rising near %s, need assistance", s.name),
			Urgency:   []string{"high", "medium", "low"}[i%3],
			Verified:  i%2 == 0,
			Source:    "twitter",
			Timestamp: fixtureTime,
			Location:  s.name,
		})
	}

	displaced := 0
	for _, d := range f.displacement {
		displaced += d.DisplacedCount
	}
	f.statistics = domain.Statistics{
		"total_zones":       len(f.zones),
		"active_alerts":     len(f.alerts),
		"flood_areas":       len(f.floods),
		"total_displaced":   displaced,
		"infrastructure":    len(f.infrastructure),
		"last_updated":      fixtureTime,
		"rescue_operations": 14,
	}
	return f
}

func offset(c domain.Coordinates, d float64) *domain.Coordinates {
	return &domain.Coordinates{Lat: c.Lat + d, Lon: c.Lon + d}
}
