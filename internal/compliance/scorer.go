package compliance

// Weights are the points deducted per issue severity.
type Weights struct {
	Critical int
	Major    int
	Minor    int
}

// Thresholds are the lowest scores that still earn Ready and Warning.
type Thresholds struct {
	Ready   int
	Warning int
}

// Scorer turns an issue list into a readiness score and grade.
type Scorer struct {
	Weights    Weights
	Thresholds Thresholds
}

// DefaultScorer deducts 20/10/5 and grades at 80 and 50.
func DefaultScorer() Scorer {
	return Scorer{
		Weights:    Weights{Critical: 20, Major: 10, Minor: 5},
		Thresholds: Thresholds{Ready: 80, Warning: 50},
	}
}

// Score starts at 100, subtracts a deduction per issue and floors at 0.
func (s Scorer) Score(issues []Issue) (int, Grade) {
	score := 100
	for _, issue := range issues {
		score -= s.deduction(issue.Severity)
	}
	if score < 0 {
		score = 0
	}
	return score, s.Grade(score)
}

// Grade maps a score onto Ready, Warning or Critical.
func (s Scorer) Grade(score int) Grade {
	switch {
	case score >= s.Thresholds.Ready:
		return GradeReady
	case score >= s.Thresholds.Warning:
		return GradeWarning
	default:
		return GradeCritical
	}
}

func (s Scorer) deduction(sev Severity) int {
	switch NormalizeSeverity(string(sev)) {
	case SeverityCritical:
		return s.Weights.Critical
	case SeverityMajor:
		return s.Weights.Major
	default:
		return s.Weights.Minor
	}
}
