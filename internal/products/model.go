package products

import "time"

// Product is the catalog view consumed by export analysis.
type Product struct {
	ID                  int64          `json:"id"`
	BusinessID          int64          `json:"business_id"`
	OwnerUserID         string         `json:"owner_user_id"`
	NameLocal           string         `json:"name_local"`
	CategoryID          int            `json:"category_id"`
	DescriptionLocal    string         `json:"description_local"`
	MaterialComposition string         `json:"material_composition"`
	ProductionTechnique string         `json:"production_technique"`
	FinishingType       string         `json:"finishing_type"`
	QualitySpecs        map[string]any `json:"quality_specs"`
	DurabilityClaim     string         `json:"durability_claim"`
	PackagingType       string         `json:"packaging_type"`
	Dimensions          map[string]any `json:"dimensions_l_w_h"`
	WeightNet           *float64       `json:"weight_net"`
	WeightGross         *float64       `json:"weight_gross"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	// Enrichment is nil until the product has been enriched.
	Enrichment *Enrichment `json:"enrichment"`
}

// Enrichment is the AI-generated export profile of a product.
type Enrichment struct {
	HSCode              string    `json:"hs_code_recommendation"`
	SKU                 string    `json:"sku_generated"`
	NameEnglish         string    `json:"name_english_b2b"`
	DescriptionEnglish  string    `json:"description_english_b2b"`
	MarketingHighlights []string  `json:"marketing_highlights"`
	LastUpdatedAI       time.Time `json:"last_updated_ai"`
}

// HasEnrichment reports whether the product carries an enrichment record.
func (p Product) HasEnrichment() bool {
	return p.Enrichment != nil
}
