package countries

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"exportready-backend/internal/shared/telemetry"
)

//go:embed seed/default.yaml
var defaultSeed []byte

// Seed is the YAML document applied by administrative seeding.
type Seed struct {
	Countries   []SeedCountry    `yaml:"countries"`
	Regulations []SeedRegulation `yaml:"regulations"`
}

type SeedCountry struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Region string `yaml:"region"`
}

type SeedRegulation struct {
	Country           string       `yaml:"country"`
	Category          RuleCategory `yaml:"category"`
	ForbiddenKeywords string       `yaml:"forbidden_keywords"`
	RequiredSpecs     string       `yaml:"required_specs"`
	Description       string       `yaml:"description"`
}

// LoadSeed parses and validates a seed document.
func LoadSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	known := make(map[string]struct{}, len(seed.Countries))
	for i, c := range seed.Countries {
		code := normalizeCode(c.Code)
		if len(code) != 2 || strings.TrimSpace(c.Name) == "" {
			return Seed{}, fmt.Errorf("seed country %d: code must be 2 letters and name is required", i)
		}
		known[code] = struct{}{}
	}
	for i, reg := range seed.Regulations {
		if _, ok := known[normalizeCode(reg.Country)]; !ok {
			return Seed{}, fmt.Errorf("seed regulation %d: unknown country %q", i, reg.Country)
		}
		if !reg.Category.Valid() {
			return Seed{}, fmt.Errorf("seed regulation %d: %w %q", i, ErrInvalidCategory, reg.Category)
		}
	}
	return seed, nil
}

// DefaultSeed returns the seed bundled with the binary.
func DefaultSeed() (Seed, error) {
	return LoadSeed(strings.NewReader(string(defaultSeed)))
}

// Seeder applies seeds to a Repo.
type Seeder struct {
	Repo Repo
}

// SeedResult reports what Apply changed.
type SeedResult struct {
	Countries          int
	RegulationsCreated int
	RegulationsSkipped int
}

// Apply upserts every country and inserts regulations that are not yet present.
func (s *Seeder) Apply(ctx context.Context, seed Seed) (SeedResult, error) {
	var res SeedResult
	for _, c := range seed.Countries {
		if err := s.Repo.UpsertCountry(ctx, Country{Code: c.Code, Name: c.Name, Region: c.Region}); err != nil {
			return res, fmt.Errorf("upsert country %s: %w", c.Code, err)
		}
		res.Countries++
	}
	for _, reg := range seed.Regulations {
		created, err := s.Repo.EnsureRegulation(ctx, Regulation{
			CountryCode:       reg.Country,
			Category:          reg.Category,
			ForbiddenKeywords: reg.ForbiddenKeywords,
			RequiredSpecs:     reg.RequiredSpecs,
			Description:       reg.Description,
		})
		if err != nil {
			return res, fmt.Errorf("insert %s %s regulation: %w", reg.Country, reg.Category, err)
		}
		if created {
			res.RegulationsCreated++
		} else {
			res.RegulationsSkipped++
		}
	}
	telemetry.Info("countries.seeded", map[string]any{
		"countries":           res.Countries,
		"regulations_created": res.RegulationsCreated,
		"regulations_skipped": res.RegulationsSkipped,
	})
	return res, nil
}
