package domain

import (
	"sort"
	"strings"
)

// DefaultVisiblePriorities is the number of ranked zones shown before the
// operator expands the list.
const DefaultVisiblePriorities = 5

// Feedback maps zone ids to operator-submitted feedback codes ("1".."4").
type Feedback map[string]string

// RankZones orders zones most urgent first. A zone with FeedbackCritical
// sorts ahead of any zone without it; otherwise zones order by severity
// rank, then by descending damage score. Equal zones keep input order.
// The input slice is not modified.
func RankZones(zones []Zone, fb Feedback) []Zone {
	ranked := make([]Zone, len(zones))
	copy(ranked, zones)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		aConfirmed := fb[a.ID] == FeedbackCritical
		bConfirmed := fb[b.ID] == FeedbackCritical
		if aConfirmed != bConfirmed {
			return aConfirmed
		}
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		return a.DamageScore > b.DamageScore
	})
	return ranked
}

// RankedZone is a zone in priority order with its position and any feedback.
type RankedZone struct {
	Zone
	Position int    `json:"position"`
	Feedback string `json:"feedback,omitempty"`
}

// PriorityView is the top-N-with-expand view over the ranked zones.
type PriorityView struct {
	Zones    []RankedZone `json:"zones"`
	Total    int          `json:"total"`
	Expanded bool         `json:"expanded"`
	HasMore  bool         `json:"has_more"`
}

// Priorities ranks zones and returns the first DefaultVisiblePriorities of
// them, or all of them when expanded is true.
func Priorities(zones []Zone, fb Feedback, expanded bool) PriorityView {
	ranked := RankZones(zones, fb)
	visible := ranked
	if !expanded && len(visible) > DefaultVisiblePriorities {
		visible = visible[:DefaultVisiblePriorities]
	}

	out := make([]RankedZone, len(visible))
	for i, z := range visible {
		out[i] = RankedZone{Zone: z, Position: i + 1, Feedback: fb[z.ID]}
	}
	return PriorityView{
		Zones:    out,
		Total:    len(ranked),
		Expanded: expanded,
		HasMore:  len(ranked) > len(visible),
	}
}

// MinSearchLength is the shortest query SearchZones will match.
const MinSearchLength = 2

// SearchZones returns the zones whose id or name contains query,
// case-insensitively. Queries shorter than MinSearchLength match nothing.
func SearchZones(zones []Zone, query string) []Zone {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < MinSearchLength {
		return []Zone{}
	}
	matches := []Zone{}
	for _, z := range zones {
		if strings.Contains(strings.ToLower(z.Name), q) || strings.Contains(strings.ToLower(z.ID), q) {
			matches = append(matches, z)
		}
	}
	return matches
}

// DefaultRecentAlerts is the number of alerts shown in the alert panel.
const DefaultRecentAlerts = 8

// RecentAlerts orders alerts newest first and returns at most limit of them.
// Alerts with unparseable timestamps sort after dated ones, keeping their
// relative order. A non-positive limit returns every alert.
func RecentAlerts(alerts []Alert, limit int) []Alert {
	type dated struct {
		alert Alert
		ok    bool
		unix  int64
	}
	items := make([]dated, len(alerts))
	for i, a := range alerts {
		ts, ok := ParseTimestamp(a.Timestamp)
		items[i] = dated{alert: a, ok: ok, unix: ts.UnixNano()}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ok != items[j].ok {
			return items[i].ok
		}
		return items[i].unix > items[j].unix
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]Alert, len(items))
	for i, it := range items {
		out[i] = it.alert
	}
	return out
}
