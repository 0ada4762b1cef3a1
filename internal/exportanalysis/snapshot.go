package exportanalysis

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"exportready-backend/internal/products"
)

// Clock hands out snapshot timestamps. Each value is strictly later than the
// previous one and truncated to the microsecond precision Postgres keeps.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a Clock over now, or the wall clock when now is nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns a timestamp later than every earlier Next result.
func (c *Clock) Next() time.Time {
	return c.NextAfter(time.Time{})
}

// NextAfter is Next, additionally later than floor.
func (c *Clock) NextAfter(floor time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if c.last.After(floor) {
		floor = c.last
	}
	if !t.After(floor) {
		t = floor.Truncate(time.Microsecond).Add(time.Microsecond)
	}
	c.last = t
	return t
}

// NewSnapshot copies the compliance-relevant fields of p. Maps and slices are
// copied so later changes to p never reach the snapshot.
func NewSnapshot(p products.Product, at time.Time) ProductSnapshot {
	s := ProductSnapshot{
		ProductID:           p.ID,
		BusinessID:          p.BusinessID,
		NameLocal:           p.NameLocal,
		CategoryID:          p.CategoryID,
		DescriptionLocal:    p.DescriptionLocal,
		MaterialComposition: p.MaterialComposition,
		ProductionTechnique: p.ProductionTechnique,
		FinishingType:       p.FinishingType,
		QualitySpecs:        copyMap(p.QualitySpecs),
		DurabilityClaim:     p.DurabilityClaim,
		PackagingType:       p.PackagingType,
		Dimensions:          copyMap(p.Dimensions),
		WeightNet:           copyFloat(p.WeightNet),
		WeightGross:         copyFloat(p.WeightGross),
		SnapshotCreatedAt:   at,
	}
	if e := p.Enrichment; e != nil {
		s.Enrichment = &SnapshotEnrichment{
			HSCode:              e.HSCode,
			SKU:                 e.SKU,
			NameEnglish:         e.NameEnglish,
			DescriptionEnglish:  e.DescriptionEnglish,
			MarketingHighlights: append([]string(nil), e.MarketingHighlights...),
		}
	}
	return s
}

// IsProductChanged reports whether the live product was modified after the snapshot.
func IsProductChanged(s ProductSnapshot, p products.Product) bool {
	return p.UpdatedAt.After(s.SnapshotCreatedAt)
}

// FieldChange is one field that differs between two snapshots.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// DiffSnapshots lists the compliance fields that differ from a to b.
func DiffSnapshots(a, b ProductSnapshot) []FieldChange {
	var out []FieldChange
	add := func(field string, before, after any) {
		if !reflect.DeepEqual(before, after) {
			out = append(out, FieldChange{Field: field, Before: before, After: after})
		}
	}
	add("name_local", a.NameLocal, b.NameLocal)
	add("category_id", a.CategoryID, b.CategoryID)
	add("description_local", a.DescriptionLocal, b.DescriptionLocal)
	add("material_composition", a.MaterialComposition, b.MaterialComposition)
	add("production_technique", a.ProductionTechnique, b.ProductionTechnique)
	add("finishing_type", a.FinishingType, b.FinishingType)
	add("quality_specs", a.QualitySpecs, b.QualitySpecs)
	add("durability_claim", a.DurabilityClaim, b.DurabilityClaim)
	add("packaging_type", a.PackagingType, b.PackagingType)
	add("dimensions_l_w_h", a.Dimensions, b.Dimensions)
	add("weight_net", derefFloat(a.WeightNet), derefFloat(b.WeightNet))
	add("weight_gross", derefFloat(a.WeightGross), derefFloat(b.WeightGross))
	add("hs_code_recommendation", hsCode(a), hsCode(b))
	return out
}

func hsCode(s ProductSnapshot) string {
	if s.Enrichment == nil {
		return ""
	}
	return s.Enrichment.HSCode
}

func derefFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// copyMap deep-copies decoded-JSON style values so nested maps and slices
// are not shared with the source.
func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		return t
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, item := range t {
			out[k] = item
		}
		return out
	default:
		// Anything else is normalized through JSON, the form it is stored in.
		raw, err := json.Marshal(t)
		if err != nil {
			return t
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return t
		}
		return decoded
	}
}
