package livesync

import (
	"time"

	"github.com/couchcryptid/disaster-console/internal/domain"
)

// Batch is the complete result of one poll: all seven resources.
type Batch struct {
	Zones          []domain.Zone
	FloodAreas     []domain.FloodArea
	Infrastructure []domain.InfrastructureSite
	Displacement   []domain.DisplacementArea
	Alerts         []domain.Alert
	SocialFeed     []domain.SocialPost
	Statistics     domain.Statistics
}

// Merge builds the snapshot that replaces prev after a successful poll.
// Every collection is replaced wholesale; missing collections become empty
// rather than nil. LastSuccessfulSync never moves backwards. prev is not
// modified.
func Merge(prev *domain.Snapshot, b Batch, now time.Time) *domain.Snapshot {
	synced := now
	if prev != nil && prev.LastSuccessfulSync.After(now) {
		synced = prev.LastSuccessfulSync
	}
	return &domain.Snapshot{
		Zones:              orEmpty(b.Zones),
		FloodAreas:         orEmpty(b.FloodAreas),
		Infrastructure:     orEmpty(b.Infrastructure),
		Displacement:       orEmpty(b.Displacement),
		Alerts:             orEmpty(b.Alerts),
		SocialFeed:         orEmpty(b.SocialFeed),
		Statistics:         statsOrEmpty(b.Statistics),
		LastSuccessfulSync: synced,
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func statsOrEmpty(s domain.Statistics) domain.Statistics {
	if s == nil {
		return domain.Statistics{}
	}
	return s
}
