package countries

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu          sync.RWMutex
	countries   map[string]Country
	regulations []Regulation
	nextID      int64
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{countries: make(map[string]Country)}
}

func (r *MemoryRepo) GetCountry(ctx context.Context, code string) (Country, error) {
	if err := ctx.Err(); err != nil {
		return Country{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.countries[normalizeCode(code)]
	if !ok {
		return Country{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetCountries(ctx context.Context, codes []string) (map[string]Country, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Country, len(codes))
	for _, code := range codes {
		if c, ok := r.countries[normalizeCode(code)]; ok {
			out[c.Code] = c
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListCountries(ctx context.Context, filter ListFilter) ([]Country, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []Country
	for _, c := range r.countries {
		if filter.Region != "" && !strings.EqualFold(c.Region, filter.Region) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) && !strings.Contains(strings.ToLower(c.Code), search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) CountRegulations(ctx context.Context, codes []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		want[normalizeCode(code)] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(codes))
	for _, reg := range r.regulations {
		if _, ok := want[reg.CountryCode]; ok {
			out[reg.CountryCode]++
		}
	}
	return out, nil
}

func (r *MemoryRepo) RegulationsFor(ctx context.Context, code string, category RuleCategory) ([]Regulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code = normalizeCode(code)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Regulation{}
	for _, reg := range r.regulations {
		if reg.CountryCode == code && reg.Category == category {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r *MemoryRepo) RegulationsByCountry(ctx context.Context, code string) ([]Regulation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code = normalizeCode(code)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Regulation{}
	for _, reg := range r.regulations {
		if reg.CountryCode == code {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r *MemoryRepo) UpsertCountry(ctx context.Context, c Country) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Code = normalizeCode(c.Code)
	now := time.Now().UTC()
	if existing, ok := r.countries[c.Code]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.countries[c.Code] = c
	return nil
}

func (r *MemoryRepo) EnsureRegulation(ctx context.Context, reg Regulation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !reg.Category.Valid() {
		return false, ErrInvalidCategory
	}
	reg.CountryCode = normalizeCode(reg.CountryCode)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.countries[reg.CountryCode]; !ok {
		return false, ErrNotFound
	}
	for _, existing := range r.regulations {
		if existing.CountryCode == reg.CountryCode && existing.Category == reg.Category && existing.Description == reg.Description {
			return false, nil
		}
	}
	r.nextID++
	reg.ID = r.nextID
	reg.CreatedAt = time.Now().UTC()
	r.regulations = append(r.regulations, reg)
	return true, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
