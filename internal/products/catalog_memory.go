package products

import (
	"context"
	"sync"
	"time"
)

// MemoryCatalog is an in-memory Catalog used in dev mode and tests.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[int64]Product
	now      func() time.Time
}

// NewMemoryCatalog constructs a MemoryCatalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[int64]Product),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryCatalog) GetProduct(ctx context.Context, id int64) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return cloneProduct(p), nil
}

// NewMemoryCatalogWithClock is NewMemoryCatalog with a custom time source for UpdatedAt stamps.
func NewMemoryCatalogWithClock(now func() time.Time) *MemoryCatalog {
	c := NewMemoryCatalog()
	if now != nil {
		c.now = now
	}
	return c
}

// Put stores a copy of p, stamping CreatedAt and UpdatedAt when zero.
func (c *MemoryCatalog) Put(p Product) Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	c.products[p.ID] = cloneProduct(p)
	return cloneProduct(p)
}

// Touch applies mutate to the stored product and bumps UpdatedAt past its previous value.
func (c *MemoryCatalog) Touch(id int64, mutate func(*Product)) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	if mutate != nil {
		mutate(&p)
	}
	now := c.now()
	if !now.After(p.UpdatedAt) {
		now = p.UpdatedAt.Add(time.Microsecond)
	}
	p.UpdatedAt = now
	c.products[id] = cloneProduct(p)
	return cloneProduct(p), nil
}

func cloneProduct(p Product) Product {
	p.QualitySpecs = cloneMap(p.QualitySpecs)
	p.Dimensions = cloneMap(p.Dimensions)
	if p.WeightNet != nil {
		v := *p.WeightNet
		p.WeightNet = &v
	}
	if p.WeightGross != nil {
		v := *p.WeightGross
		p.WeightGross = &v
	}
	if p.Enrichment != nil {
		e := *p.Enrichment
		e.MarketingHighlights = append([]string(nil), e.MarketingHighlights...)
		p.Enrichment = &e
	}
	return p
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
