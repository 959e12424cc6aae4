package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/productos/internal/domain/product"
)

// ListProducts fetches the full product collection.
func (c *Client) ListProducts(ctx context.Context, token string) ([]product.Product, error) {
	const op = "list products"

	resp, err := c.do(ctx, op, http.MethodGet, ProductsPath, token, nil)
	if err != nil {
		return nil, err
	}
	if err := requestError(op, resp, msgListFailed); err != nil {
		return nil, err
	}

	products, err := DecodeProducts(jx.DecodeBytes(resp.body))
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

// CreateProduct sends a creation request. The ID on the wire is always 0.
func (c *Client) CreateProduct(ctx context.Context, token string, p product.Product) (product.Product, error) {
	const op = "create product"

	p.ID = 0
	resp, err := c.do(ctx, op, http.MethodPost, ProductItemDir, token, encodeProduct(p))
	if err != nil {
		return product.Product{}, err
	}
	if err := mutationError(op, resp); err != nil {
		return product.Product{}, err
	}
	return c.decodeMutation(resp, p), nil
}

// UpdateProduct sends the full record for p.ID.
func (c *Client) UpdateProduct(ctx context.Context, token string, p product.Product) (product.Product, error) {
	const op = "update product"

	if p.IsNew() {
		return product.Product{}, errors.New("update product: missing id")
	}

	path := ProductItemDir + "/" + strconv.FormatInt(p.ID, 10)
	resp, err := c.do(ctx, op, http.MethodPut, path, token, encodeProduct(p))
	if err != nil {
		return product.Product{}, err
	}
	if err := mutationError(op, resp); err != nil {
		return product.Product{}, err
	}
	return c.decodeMutation(resp, p), nil
}

// DeleteProduct removes the product with the given ID.
func (c *Client) DeleteProduct(ctx context.Context, token string, id int64) error {
	const op = "delete product"

	path := ProductItemDir + "/" + strconv.FormatInt(id, 10)
	resp, err := c.do(ctx, op, http.MethodDelete, path, token, nil)
	if err != nil {
		return err
	}
	return requestError(op, resp, msgDeleteFailed)
}

// decodeMutation returns the product echoed by the server, falling back to
// the record that was sent when the body is empty or not a product.
func (c *Client) decodeMutation(resp *response, sent product.Product) product.Product {
	if len(resp.body) == 0 {
		return sent
	}
	p, err := DecodeProduct(jx.DecodeBytes(resp.body))
	if err != nil {
		return sent
	}
	if p.IsNew() {
		p.ID = sent.ID
	}
	return p
}

func requestError(op string, resp *response, fallback string) error {
	switch {
	case resp.ok():
		return nil
	case resp.status == http.StatusUnauthorized:
		return errors.Wrap(ErrUnauthorized, op)
	default:
		return &RequestFailedError{
			Op:         op,
			StatusCode: resp.status,
			Message:    errorMessage(resp.body, fallback),
		}
	}
}

// mutationError reports 400 and 422 as payload rejections. Any other
// failure, such as a vanished id or a server error, is a RequestFailedError.
func mutationError(op string, resp *response) error {
	switch resp.status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationFailedError{
			StatusCode: resp.status,
			Message:    errorMessage(resp.body, msgSaveFailed),
		}
	}
	return requestError(op, resp, msgSaveFailed)
}
