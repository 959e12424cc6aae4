package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item as stored by the remote API.
//
// An ID of zero means the product has not been created yet; the remote side
// assigns identifiers.
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Category string
}

// IsNew reports whether the product still lacks a server-assigned ID.
func (p Product) IsNew() bool {
	return p.ID == 0
}

// Repository defines the catalog operations offered by a product backend.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// Categories returns the distinct categories of products in order of first
// occurrence.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	var out []string
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
