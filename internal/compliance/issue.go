package compliance

import "strings"

// Severity ranks a compliance issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// NormalizeSeverity lower-cases s; anything unrecognized counts as minor.
func NormalizeSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityMajor:
		return SeverityMajor
	default:
		return SeverityMinor
	}
}

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	default:
		return 2
	}
}

// Issue is one finding produced by a rule checker.
type Issue struct {
	Type          string   `json:"type"`
	RuleKey       string   `json:"rule_key"`
	YourValue     string   `json:"your_value"`
	RequiredValue string   `json:"required_value"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
}

// Grade is the coarse readiness bucket.
type Grade string

const (
	GradeReady    Grade = "Ready"
	GradeWarning  Grade = "Warning"
	GradeCritical Grade = "Critical"
)
