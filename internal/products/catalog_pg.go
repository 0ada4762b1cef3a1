package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGCatalog reads products and their enrichment from Postgres.
type PGCatalog struct {
	DB *sql.DB
}

func (c *PGCatalog) GetProduct(ctx context.Context, id int64) (Product, error) {
	const query = `
SELECT p.id, p.business_id, p.owner_user_id, p.name_local, p.category_id, p.description_local,
       p.material_composition, p.production_technique, p.finishing_type, p.quality_specs,
       p.durability_claim, p.packaging_type, p.dimensions_l_w_h, p.weight_net, p.weight_gross,
       p.created_at, p.updated_at,
       e.product_id, e.hs_code_recommendation, e.sku_generated, e.name_english_b2b,
       e.description_english_b2b, e.marketing_highlights, e.last_updated_ai
FROM products p
LEFT JOIN product_enrichments e ON e.product_id = p.id
WHERE p.id = $1`

	var p Product
	var qualitySpecs, dimensions sql.NullString
	var weightNet, weightGross sql.NullFloat64
	var enrichedID sql.NullInt64
	var hsCode, sku, nameEN, descEN, highlights sql.NullString
	var lastUpdatedAI sql.NullTime
	err := c.DB.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.BusinessID,
		&p.OwnerUserID,
		&p.NameLocal,
		&p.CategoryID,
		&p.DescriptionLocal,
		&p.MaterialComposition,
		&p.ProductionTechnique,
		&p.FinishingType,
		&qualitySpecs,
		&p.DurabilityClaim,
		&p.PackagingType,
		&dimensions,
		&weightNet,
		&weightGross,
		&p.CreatedAt,
		&p.UpdatedAt,
		&enrichedID,
		&hsCode,
		&sku,
		&nameEN,
		&descEN,
		&highlights,
		&lastUpdatedAI,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}

	if p.QualitySpecs, err = decodeObject(qualitySpecs); err != nil {
		return Product{}, fmt.Errorf("decode quality_specs: %w", err)
	}
	if p.Dimensions, err = decodeObject(dimensions); err != nil {
		return Product{}, fmt.Errorf("decode dimensions_l_w_h: %w", err)
	}
	if weightNet.Valid {
		v := weightNet.Float64
		p.WeightNet = &v
	}
	if weightGross.Valid {
		v := weightGross.Float64
		p.WeightGross = &v
	}
	if enrichedID.Valid {
		e := &Enrichment{
			HSCode:             hsCode.String,
			SKU:                sku.String,
			NameEnglish:        nameEN.String,
			DescriptionEnglish: descEN.String,
			LastUpdatedAI:      lastUpdatedAI.Time,
		}
		if highlights.Valid && highlights.String != "" {
			// highlights are best-effort marketing copy
			_ = json.Unmarshal([]byte(highlights.String), &e.MarketingHighlights)
		}
		p.Enrichment = e
	}
	return p, nil
}

func decodeObject(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
