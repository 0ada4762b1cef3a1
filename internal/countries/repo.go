package countries

import "context"

// Repo stores countries and their regulations.
type Repo interface {
	GetCountry(ctx context.Context, code string) (Country, error)
	GetCountries(ctx context.Context, codes []string) (map[string]Country, error)
	ListCountries(ctx context.Context, filter ListFilter) ([]Country, error)
	CountRegulations(ctx context.Context, codes []string) (map[string]int, error)
	// RegulationsFor returns an empty slice, not an error, when nothing matches.
	RegulationsFor(ctx context.Context, code string, category RuleCategory) ([]Regulation, error)
	RegulationsByCountry(ctx context.Context, code string) ([]Regulation, error)
	UpsertCountry(ctx context.Context, c Country) error
	// EnsureRegulation inserts r unless an identical (country, category, description) row exists.
	EnsureRegulation(ctx context.Context, r Regulation) (bool, error)
}
