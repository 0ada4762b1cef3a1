package exportanalysis

import (
	"context"
	"encoding/json"
	"time"
)

// Repo persists export analyses.
type Repo interface {
	// Create returns ErrConflict when the (product, country) pair is taken.
	Create(ctx context.Context, a ExportAnalysis) error
	GetByID(ctx context.Context, id string) (ExportAnalysis, error)
	GetByProductCountry(ctx context.Context, productID int64, countryCode string) (ExportAnalysis, error)
	List(ctx context.Context, q ListQuery) ([]ExportAnalysis, int, error)
	// Replace overwrites the results of a re-analysis. It returns ErrConflict
	// when the stored analyzed_at no longer equals prevAnalyzedAt.
	Replace(ctx context.Context, a ExportAnalysis, prevAnalyzedAt time.Time) error
	Delete(ctx context.Context, id string) error
	// SetRecommendationCache stores payload under language; last writer wins
	// among writers of one version. It returns ErrConflict when the stored
	// analyzed_at no longer equals analyzedAt, leaving the cache untouched.
	SetRecommendationCache(ctx context.Context, id string, analyzedAt time.Time, language string, payload json.RawMessage) error
}
