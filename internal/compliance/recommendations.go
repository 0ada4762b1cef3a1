package compliance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"exportready-backend/internal/llm"
)

// CompliantMessage is returned, without an analyzer call, when there are no issues.
const CompliantMessage = "Your product meets all export requirements for the target country. Keep product quality and documentation up to date."

// Generator writes remediation advice for an issue list.
type Generator struct {
	Analyzer llm.Analyzer
}

// Generate asks the analyzer for a prioritized numbered list and falls back to
// FallbackRecommendations when the call fails or returns nothing.
func (g Generator) Generate(ctx context.Context, issues []Issue) string {
	if len(issues) == 0 {
		return CompliantMessage
	}
	prompt := recommendationPrompt(SortBySeverity(issues))
	reply, err := g.Analyzer.Analyze(ctx, prompt, recommendationSystemPrompt)
	if err != nil {
		degraded("recommendations", "", prompt, llm.Classify(err))
		return FallbackRecommendations(issues)
	}
	if strings.TrimSpace(reply) == "" {
		degraded("recommendations", "", prompt, llm.ErrServiceError)
		return FallbackRecommendations(issues)
	}
	return strings.TrimSpace(reply)
}

// FallbackRecommendations enumerates issues critical first as "N. [severity] text".
func FallbackRecommendations(issues []Issue) string {
	if len(issues) == 0 {
		return CompliantMessage
	}
	sorted := SortBySeverity(issues)
	lines := make([]string, 0, len(sorted))
	for i, issue := range sorted {
		text := strings.TrimSpace(issue.Description)
		if text == "" {
			text = strings.TrimSpace(issue.RuleKey)
		}
		if text == "" {
			text = "Resolve the reported compliance finding"
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, NormalizeSeverity(string(issue.Severity)), text))
	}
	return strings.Join(lines, "\n")
}

// SortBySeverity returns a copy ordered critical, major, minor; ties keep input order.
func SortBySeverity(issues []Issue) []Issue {
	out := append([]Issue(nil), issues...)
	sort.SliceStable(out, func(i, j int) bool {
		return NormalizeSeverity(string(out[i].Severity)).rank() < NormalizeSeverity(string(out[j].Severity)).rank()
	})
	return out
}
