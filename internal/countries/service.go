package countries

import (
	"context"
	"fmt"
	"strings"
)

// Service exposes read access to countries and aggregated rule sets.
type Service struct {
	Repo Repo
}

// Get returns one country.
func (s *Service) Get(ctx context.Context, code string) (Country, error) {
	return s.Repo.GetCountry(ctx, code)
}

// RuleSet unions every regulation row for (code, category). A country with no
// rows yields an empty RuleSet and no error.
func (s *Service) RuleSet(ctx context.Context, code string, category RuleCategory) (RuleSet, error) {
	if !category.Valid() {
		return RuleSet{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	regs, err := s.Repo.RegulationsFor(ctx, code, category)
	if err != nil {
		return RuleSet{}, fmt.Errorf("load %s regulations for %s: %w", category, code, err)
	}
	return Aggregate(normalizeCode(code), category, regs), nil
}

// Aggregate builds a RuleSet from regulation rows, keeping first-seen order and
// dropping case-insensitive duplicates.
func Aggregate(code string, category RuleCategory, regs []Regulation) RuleSet {
	set := RuleSet{
		CountryCode:       code,
		Category:          category,
		Regulations:       regs,
		ForbiddenKeywords: []string{},
		RequiredSpecs:     []string{},
	}
	seenKeywords := map[string]struct{}{}
	seenSpecs := map[string]struct{}{}
	for _, reg := range regs {
		set.ForbiddenKeywords = appendUnique(set.ForbiddenKeywords, seenKeywords, SplitList(reg.ForbiddenKeywords)...)
		set.RequiredSpecs = appendUnique(set.RequiredSpecs, seenSpecs, SplitList(reg.RequiredSpecs)...)
		if d := strings.TrimSpace(reg.Description); d != "" {
			set.Descriptions = append(set.Descriptions, d)
		}
	}
	return set
}

// SplitList splits comma-separated rule text, trimming blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func appendUnique(dst []string, seen map[string]struct{}, items ...string) []string {
	for _, item := range items {
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}

// List returns countries with their regulation counts.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]CountrySummary, error) {
	list, err := s.Repo.ListCountries(ctx, filter)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(list))
	for _, c := range list {
		codes = append(codes, c.Code)
	}
	counts, err := s.Repo.CountRegulations(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := make([]CountrySummary, 0, len(list))
	for _, c := range list {
		out = append(out, CountrySummary{Country: c, RegulationsCount: counts[c.Code]})
	}
	return out, nil
}

// Detail returns a country with regulations grouped by category.
func (s *Service) Detail(ctx context.Context, code string) (CountryDetail, error) {
	c, err := s.Repo.GetCountry(ctx, code)
	if err != nil {
		return CountryDetail{}, err
	}
	regs, err := s.Repo.RegulationsByCountry(ctx, c.Code)
	if err != nil {
		return CountryDetail{}, err
	}
	byCategory := make(map[RuleCategory][]Regulation, len(Categories))
	for _, cat := range Categories {
		byCategory[cat] = []Regulation{}
	}
	for _, reg := range regs {
		byCategory[reg.Category] = append(byCategory[reg.Category], reg)
	}
	return CountryDetail{Country: c, Regulations: regs, RegulationsByCategory: byCategory}, nil
}
