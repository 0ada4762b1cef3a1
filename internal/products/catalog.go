package products

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// Catalog is the read-only product boundary.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
}
