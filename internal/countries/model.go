package countries

import "time"

// RuleCategory partitions regulations and selects the checker that applies them.
type RuleCategory string

const (
	CategoryIngredient RuleCategory = "Ingredient"
	CategoryLabeling   RuleCategory = "Labeling"
	CategoryPhysical   RuleCategory = "Physical"
)

// Categories lists every rule category in checker order.
var Categories = []RuleCategory{CategoryIngredient, CategoryLabeling, CategoryPhysical}

// Valid reports whether c is a known category.
func (c RuleCategory) Valid() bool {
	switch c {
	case CategoryIngredient, CategoryLabeling, CategoryPhysical:
		return true
	}
	return false
}

// Country is immutable reference data created by seeding.
type Country struct {
	Code      string    `json:"country_code"`
	Name      string    `json:"country_name"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Regulation is one rule row for a country and category.
// ForbiddenKeywords and RequiredSpecs hold comma-separated text as stored.
type Regulation struct {
	ID                int64        `json:"id"`
	CountryCode       string       `json:"country_code"`
	Category          RuleCategory `json:"rule_category"`
	ForbiddenKeywords string       `json:"forbidden_keywords"`
	RequiredSpecs     string       `json:"required_specs"`
	Description       string       `json:"description_rule"`
	CreatedAt         time.Time    `json:"created_at"`
}

// RuleSet is the union of every regulation for one (country, category).
type RuleSet struct {
	CountryCode       string       `json:"country_code"`
	Category          RuleCategory `json:"rule_category"`
	Regulations       []Regulation `json:"-"`
	ForbiddenKeywords []string     `json:"forbidden_keywords"`
	RequiredSpecs     []string     `json:"required_specs"`
	Descriptions      []string     `json:"descriptions,omitempty"`
}

// Empty reports whether no regulation rows matched.
func (r RuleSet) Empty() bool {
	return len(r.Regulations) == 0
}

// ListFilter narrows ListCountries.
type ListFilter struct {
	Region string
	Search string
}

// CountrySummary is a list row.
type CountrySummary struct {
	Country
	RegulationsCount int `json:"regulations_count"`
}

// CountryDetail is a country with its regulations.
type CountryDetail struct {
	Country
	Regulations           []Regulation                  `json:"regulations"`
	RegulationsByCategory map[RuleCategory][]Regulation `json:"regulations_by_category"`
}
