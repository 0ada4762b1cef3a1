package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestMemoryCatalogReturnsCopies(t *testing.T) {
	cat := NewMemoryCatalog()
	cat.Put(Product{ID: 1, QualitySpecs: map[string]any{"moisture": "12%"}, Enrichment: &Enrichment{HSCode: "2106"}})

	p, err := cat.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	p.QualitySpecs["moisture"] = "99%"
	p.Enrichment.HSCode = "0000"

	again, _ := cat.GetProduct(context.Background(), 1)
	if again.QualitySpecs["moisture"] != "12%" || again.Enrichment.HSCode != "2106" {
		t.Fatalf("stored product was mutated through a returned copy: %+v", again)
	}
}

func TestMemoryCatalogTouchAdvancesUpdatedAt(t *testing.T) {
	cat := NewMemoryCatalog()
	fixed := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	cat.now = func() time.Time { return fixed }
	before := cat.Put(Product{ID: 7, PackagingType: "Plastic"})

	after, err := cat.Touch(7, func(p *Product) { p.PackagingType = "Wooden crate" })
	if err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("expected UpdatedAt to advance on a frozen clock")
	}
	if after.PackagingType != "Wooden crate" {
		t.Fatalf("mutation not applied")
	}

	if _, err := cat.Touch(99, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

var productColumns = []string{
	"id", "business_id", "owner_user_id", "name_local", "category_id", "description_local",
	"material_composition", "production_technique", "finishing_type", "quality_specs",
	"durability_claim", "packaging_type", "dimensions_l_w_h", "weight_net", "weight_gross",
	"created_at", "updated_at",
	"product_id", "hs_code_recommendation", "sku_generated", "name_english_b2b",
	"description_english_b2b", "marketing_highlights", "last_updated_ai",
}

func TestPGCatalogWithoutEnrichment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	mock.ExpectQuery("FROM products p").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(
			5, 2, "user-1", "Keripik Tempe", 3, "Keripik renyah",
			"Tempe, Palm Oil, Salt", "Fried", "", `{"moisture":"5%"}`,
			"", "Plastic pouch", nil, 0.25, nil,
			now, now,
			nil, nil, nil, nil, nil, nil, nil,
		))

	p, err := (&PGCatalog{DB: db}).GetProduct(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.HasEnrichment() {
		t.Fatalf("expected no enrichment")
	}
	if p.QualitySpecs["moisture"] != "5%" || p.WeightNet == nil || *p.WeightNet != 0.25 || p.WeightGross != nil {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestPGCatalogWithEnrichment(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	mock.ExpectQuery("FROM products p").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(
			5, 2, "user-1", "Keripik Tempe", 3, "",
			"Tempe, Palm Oil, Salt", "", "", nil,
			"", "", nil, nil, nil,
			now, now,
			5, "2106.90", "KT-001", "Tempeh Chips", "Crispy tempeh chips", `["vegan"]`, now,
		))

	p, err := (&PGCatalog{DB: db}).GetProduct(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !p.HasEnrichment() || p.Enrichment.HSCode != "2106.90" || len(p.Enrichment.MarketingHighlights) != 1 {
		t.Fatalf("unexpected enrichment: %+v", p.Enrichment)
	}
}

func TestPGCatalogNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("FROM products p").WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(productColumns))

	if _, err := (&PGCatalog{DB: db}).GetProduct(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
