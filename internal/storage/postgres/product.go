// Package postgres implements the stub API's product storage on PostgreSQL.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/productos/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

const (
	listProducts = `SELECT id, name, price, category FROM products ORDER BY id`

	insertProduct = `INSERT INTO products (name, price, category)
VALUES ($1, $2, $3)
RETURNING id, name, price, category`

	updateProduct = `UPDATE products
SET name = $2, price = $3, category = $4, updated_at = now()
WHERE id = $1
RETURNING id, name, price, category`

	deleteProduct = `DELETE FROM products WHERE id = $1`
)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProducts)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	if products == nil {
		products = []product.Product{}
	}
	return products, nil
}

// Create inserts a product. The ID of p is ignored; the database assigns it.
func (r *ProductRepository) Create(ctx context.Context, p product.Product) (product.Product, error) {
	row := r.pool.QueryRow(ctx, insertProduct, p.Name, p.Price, p.Category)
	created, err := scanProduct(row)
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "create product %q", p.Name)
	}
	return created, nil
}

// Update replaces the stored record with the same ID. It returns
// product.ErrNotFound when no such product exists.
func (r *ProductRepository) Update(ctx context.Context, p product.Product) (product.Product, error) {
	row := r.pool.QueryRow(ctx, updateProduct, p.ID, p.Name, p.Price, p.Category)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, errors.Wrapf(err, "update product %d", p.ID)
	}
	return updated, nil
}

// Delete removes the product with the given ID. It returns
// product.ErrNotFound when no row was deleted.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteProduct, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Category); err != nil {
		return product.Product{}, err
	}
	p.Price = price
	return p, nil
}
