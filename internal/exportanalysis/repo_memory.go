package exportanalysis

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]ExportAnalysis
	byPair map[pairKey]string
}

type pairKey struct {
	productID   int64
	countryCode string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]ExportAnalysis),
		byPair: make(map[pairKey]string),
	}
}

// Create stores the analysis unless its pair already has one.
func (r *MemoryRepo) Create(ctx context.Context, a ExportAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey{a.ProductID, a.CountryCode}
	if _, exists := r.byPair[key]; exists {
		return ErrConflict
	}
	r.byID[a.ID] = cloneAnalysis(a)
	r.byPair[key] = a.ID
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (ExportAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return ExportAnalysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return ExportAnalysis{}, ErrNotFound
	}
	return cloneAnalysis(a), nil
}

func (r *MemoryRepo) GetByProductCountry(ctx context.Context, productID int64, countryCode string) (ExportAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return ExportAnalysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[pairKey{productID, countryCode}]
	if !ok {
		return ExportAnalysis{}, ErrNotFound
	}
	return cloneAnalysis(r.byID[id]), nil
}

// List returns one page, newest analyzed_at first, and the unpaged total.
func (r *MemoryRepo) List(ctx context.Context, q ListQuery) ([]ExportAnalysis, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]ExportAnalysis, 0, len(r.byID))
	for _, a := range r.byID {
		if matchesQuery(a, q) {
			matched = append(matched, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].AnalyzedAt.Equal(matched[j].AnalyzedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].AnalyzedAt.After(matched[j].AnalyzedAt)
	})

	total := len(matched)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []ExportAnalysis{}, total, nil
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < end {
		end = offset + q.Limit
	}
	out := make([]ExportAnalysis, 0, end-offset)
	for _, a := range matched[offset:end] {
		out = append(out, cloneAnalysis(a))
	}
	return out, total, nil
}

func matchesQuery(a ExportAnalysis, q ListQuery) bool {
	if !q.All {
		owned := (q.BusinessID > 0 && a.BusinessID == q.BusinessID) ||
			(q.OwnerUserID != "" && a.OwnerUserID == q.OwnerUserID)
		if !owned {
			return false
		}
	}
	if q.CountryCode != "" && a.CountryCode != q.CountryCode {
		return false
	}
	if q.ScoreMin != nil && a.ReadinessScore < *q.ScoreMin {
		return false
	}
	if q.ScoreMax != nil && a.ReadinessScore > *q.ScoreMax {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(a.ProductName), needle) &&
			!strings.Contains(strings.ToLower(a.CountryName), needle) {
			return false
		}
	}
	return true
}

// Replace overwrites results, snapshot and timestamps and clears the cache.
func (r *MemoryRepo) Replace(ctx context.Context, a ExportAnalysis, prevAnalyzedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.AnalyzedAt.Equal(prevAnalyzedAt) {
		return ErrConflict
	}
	stored.ProductName = a.ProductName
	stored.ReadinessScore = a.ReadinessScore
	stored.StatusGrade = a.StatusGrade
	stored.ComplianceIssues = a.ComplianceIssues
	stored.Recommendations = a.Recommendations
	stored.ProductSnapshot = a.ProductSnapshot
	stored.RegulationSnapshot = a.RegulationSnapshot
	stored.RecommendationsCache = map[string]json.RawMessage{}
	stored.AnalyzedAt = a.AnalyzedAt
	r.byID[a.ID] = cloneAnalysis(stored)
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byPair, pairKey{a.ProductID, a.CountryCode})
	return nil
}

func (r *MemoryRepo) SetRecommendationCache(ctx context.Context, id string, analyzedAt time.Time, language string, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !a.AnalyzedAt.Equal(analyzedAt) {
		return ErrConflict
	}
	cache := make(map[string]json.RawMessage, len(a.RecommendationsCache)+1)
	for k, v := range a.RecommendationsCache {
		cache[k] = v
	}
	cache[language] = append(json.RawMessage(nil), payload...)
	a.RecommendationsCache = cache
	r.byID[id] = a
	return nil
}

func cloneAnalysis(a ExportAnalysis) ExportAnalysis {
	a.ComplianceIssues = append(a.ComplianceIssues[:0:0], a.ComplianceIssues...)
	a.ProductSnapshot.QualitySpecs = copyMap(a.ProductSnapshot.QualitySpecs)
	a.ProductSnapshot.Dimensions = copyMap(a.ProductSnapshot.Dimensions)
	if a.RecommendationsCache != nil {
		cache := make(map[string]json.RawMessage, len(a.RecommendationsCache))
		for k, v := range a.RecommendationsCache {
			cache[k] = v
		}
		a.RecommendationsCache = cache
	}
	return a
}
