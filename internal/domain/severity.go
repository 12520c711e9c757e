package domain

import "strings"

// Severity is the ordinal disaster-impact category assigned by the data service.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// unrankedSeverity sorts unknown or missing severities after low.
const unrankedSeverity = 5

// Rank returns the urgency rank of the severity: 1 for critical through 4
// for low. Matching is case-insensitive; unknown values rank last.
func (s Severity) Rank() int {
	switch Severity(strings.ToLower(strings.TrimSpace(string(s)))) {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 4
	default:
		return unrankedSeverity
	}
}

// Feedback codes an operator can submit for a zone. FeedbackCritical is the
// human-confirmed critical code that overrides automated severity in ranking.
const (
	FeedbackMinor    = "1"
	FeedbackModerate = "2"
	FeedbackSevere   = "3"
	FeedbackCritical = "4"
)

// ValidFeedback reports whether code is one of the four feedback codes.
func ValidFeedback(code string) bool {
	switch code {
	case FeedbackMinor, FeedbackModerate, FeedbackSevere, FeedbackCritical:
		return true
	}
	return false
}

// Image change severity labels derived from the change percentage.
const (
	ChangeCritical = "CRITICAL"
	ChangeHigh     = "HIGH"
	ChangeMedium   = "MEDIUM"
	ChangeLow      = "LOW"
)

// ChangeSeverity classifies an image change percentage:
//
//	> 50 CRITICAL | > 30 HIGH | > 15 MEDIUM | otherwise LOW
func ChangeSeverity(changePercentage float64) string {
	switch {
	case changePercentage > 50:
		return ChangeCritical
	case changePercentage > 30:
		return ChangeHigh
	case changePercentage > 15:
		return ChangeMedium
	default:
		return ChangeLow
	}
}
