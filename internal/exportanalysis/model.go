package exportanalysis

import (
	"encoding/json"
	"time"

	"exportready-backend/internal/compliance"
	"exportready-backend/internal/countries"
	"exportready-backend/internal/shared/auth"
)

// Status is a step of the analysis pipeline. It only appears in logs.
type Status string

const (
	StatusValidating Status = "validating"
	StatusChecking   Status = "checking"
	StatusScoring    Status = "scoring"
	StatusPersisting Status = "persisting"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Languages accepted for regulation recommendations. The first is the default.
var Languages = []string{"id", "en"}

// SnapshotEnrichment is the enrichment data frozen with a snapshot.
type SnapshotEnrichment struct {
	HSCode              string   `json:"hs_code_recommendation"`
	SKU                 string   `json:"sku_generated"`
	NameEnglish         string   `json:"name_english_b2b"`
	DescriptionEnglish  string   `json:"description_english_b2b"`
	MarketingHighlights []string `json:"marketing_highlights,omitempty"`
}

// ProductSnapshot is an immutable copy of the compliance-relevant product
// fields taken when an analysis is persisted.
type ProductSnapshot struct {
	ProductID           int64               `json:"product_id"`
	BusinessID          int64               `json:"business_id"`
	NameLocal           string              `json:"name_local"`
	CategoryID          int                 `json:"category_id"`
	DescriptionLocal    string              `json:"description_local"`
	MaterialComposition string              `json:"material_composition"`
	ProductionTechnique string              `json:"production_technique"`
	FinishingType       string              `json:"finishing_type"`
	QualitySpecs        map[string]any      `json:"quality_specs"`
	DurabilityClaim     string              `json:"durability_claim"`
	PackagingType       string              `json:"packaging_type"`
	Dimensions          map[string]any      `json:"dimensions_l_w_h"`
	WeightNet           *float64            `json:"weight_net"`
	WeightGross         *float64            `json:"weight_gross"`
	Enrichment          *SnapshotEnrichment `json:"enrichment"`
	SnapshotCreatedAt   time.Time           `json:"snapshot_created_at"`
}

// CheckerInput returns the view the rule checkers read.
func (s ProductSnapshot) CheckerInput() compliance.Input {
	return compliance.Input{
		MaterialComposition: s.MaterialComposition,
		QualitySpecs:        s.QualitySpecs,
		PackagingType:       s.PackagingType,
	}
}

// RegulationSnapshot records which rules an analysis was checked against.
type RegulationSnapshot struct {
	CountryCode string                                       `json:"country_code"`
	CapturedAt  time.Time                                    `json:"captured_at"`
	Categories  map[countries.RuleCategory]countries.RuleSet `json:"categories"`
}

// ExportAnalysis is the persisted compliance assessment of one product for one country.
type ExportAnalysis struct {
	ID                   string                     `json:"id"`
	ProductID            int64                      `json:"product_id"`
	OwnerUserID          string                     `json:"owner_user_id"`
	BusinessID           int64                      `json:"business_id"`
	ProductName          string                     `json:"product_name"`
	CountryCode          string                     `json:"target_country_code"`
	CountryName          string                     `json:"target_country_name"`
	ReadinessScore       int                        `json:"readiness_score"`
	StatusGrade          compliance.Grade           `json:"status_grade"`
	ComplianceIssues     []compliance.Issue         `json:"compliance_issues"`
	Recommendations      string                     `json:"recommendations"`
	ProductSnapshot      ProductSnapshot            `json:"product_snapshot"`
	RegulationSnapshot   *RegulationSnapshot        `json:"regulation_snapshot,omitempty"`
	RecommendationsCache map[string]json.RawMessage `json:"-"`
	AnalyzedAt           time.Time                  `json:"analyzed_at"`
	CreatedAt            time.Time                  `json:"created_at"`
}

// View is an analysis as returned to a caller.
type View struct {
	ExportAnalysis
	ProductChanged bool `json:"product_changed"`
}

// Caller identifies who is acting.
type Caller struct {
	UserID     string
	BusinessID int64
	Role       string
}

// IsAdmin reports whether the caller bypasses ownership checks.
func (c Caller) IsAdmin() bool {
	return c.Role == auth.RoleAdmin
}

// owns reports whether the caller owns a resource of the given business and user.
func (c Caller) owns(businessID int64, ownerUserID string) bool {
	if c.IsAdmin() {
		return true
	}
	if c.BusinessID > 0 && businessID > 0 {
		return c.BusinessID == businessID
	}
	return c.UserID != "" && c.UserID == ownerUserID
}

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	CountryCode string
	ScoreMin    *int
	ScoreMax    *int
	Search      string
	Page        int
	Limit       int
}

// ListQuery is a ListFilter scoped to a caller for the repository.
type ListQuery struct {
	ListFilter
	// All disables the owner scope.
	All         bool
	OwnerUserID string
	BusinessID  int64
	Offset      int
}

// ListResult is one page of analyses.
type ListResult struct {
	Items []ExportAnalysis `json:"results"`
	Total int              `json:"count"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// CompareResult is the outcome for one country of a comparison.
type CompareResult struct {
	CountryCode string          `json:"country_code"`
	Analysis    *ExportAnalysis `json:"analysis,omitempty"`
	Reused      bool            `json:"reused"`
	Error       string          `json:"error,omitempty"`
}

// Comparison holds all legs of a comparison in request order.
type Comparison struct {
	ProductID         int64           `json:"product_id"`
	SnapshotCreatedAt time.Time       `json:"snapshot_created_at"`
	Results           []CompareResult `json:"results"`
}

// RecommendationRequest selects an analysis by ID, or by product and country.
type RecommendationRequest struct {
	AnalysisID  string
	ProductID   int64
	CountryCode string
	Language    string
}

// RecommendationResult is a regulation recommendation document.
type RecommendationResult struct {
	AnalysisID      string          `json:"analysis_id"`
	CountryCode     string          `json:"country_code"`
	Language        string          `json:"language"`
	Recommendations json.RawMessage `json:"recommendations"`
	FromCache       bool            `json:"from_cache"`
}
