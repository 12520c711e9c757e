package domain

import "time"

// Snapshot is the canonical merged state produced by one successful sync.
// A published Snapshot is never mutated; a new one replaces it wholesale.
type Snapshot struct {
	Zones              []Zone               `json:"zones"`
	FloodAreas         []FloodArea          `json:"flood_areas"`
	Infrastructure     []InfrastructureSite `json:"infrastructure"`
	Displacement       []DisplacementArea   `json:"displacement"`
	Alerts             []Alert              `json:"alerts"`
	SocialFeed         []SocialPost         `json:"social_feed"`
	Statistics         Statistics           `json:"statistics"`
	LastSuccessfulSync time.Time            `json:"last_successful_sync"`
}

// EmptySnapshot returns the snapshot held before the first successful sync.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		Zones:          []Zone{},
		FloodAreas:     []FloodArea{},
		Infrastructure: []InfrastructureSite{},
		Displacement:   []DisplacementArea{},
		Alerts:         []Alert{},
		SocialFeed:     []SocialPost{},
		Statistics:     Statistics{},
	}
}

// Synced reports whether the snapshot came from at least one successful sync.
func (s *Snapshot) Synced() bool {
	return !s.LastSuccessfulSync.IsZero()
}

// ZoneByID returns the zone with the given id.
func (s *Snapshot) ZoneByID(id string) (Zone, bool) {
	for _, z := range s.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}
