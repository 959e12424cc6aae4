// Package catalog is the product repository client: authenticated list, save
// and remove against the remote collection, with reads served through the
// query cache and invalidated after every successful mutation.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/api"
	"github.com/xenking/productos/internal/domain/product"
	"github.com/xenking/productos/internal/querycache"
)

// Session supplies the bearer token and handles its expiry.
type Session interface {
	RequireToken(ctx context.Context) (string, error)
	Expire(ctx context.Context)
	Logout(ctx context.Context) error
}

// Remote is the product API transport.
type Remote interface {
	ListProducts(ctx context.Context, token string) ([]product.Product, error)
	CreateProduct(ctx context.Context, token string, p product.Product) (product.Product, error)
	UpdateProduct(ctx context.Context, token string, p product.Product) (product.Product, error)
	DeleteProduct(ctx context.Context, token string, id int64) error
}

// Client is the product repository client.
type Client struct {
	session Session
	remote  Remote
	cache   *querycache.Cache
	tracer  trace.Tracer
	lg      *zap.Logger
}

// New creates a Client. A nil TracerProvider disables tracing.
func New(session Session, remote Remote, cache *querycache.Cache, tp trace.TracerProvider, lg *zap.Logger) *Client {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Client{
		session: session,
		remote:  remote,
		cache:   cache,
		tracer:  tp.Tracer("github.com/xenking/productos/internal/catalog"),
		lg:      lg,
	}
}

// List returns the product collection, from cache when fresh.
func (c *Client) List(ctx context.Context) (_ []product.Product, rerr error) {
	ctx, span := c.tracer.Start(ctx, "catalog.List")
	defer func() { endSpan(span, rerr) }()

	// A cached snapshot is only served to a live session.
	token, err := c.session.RequireToken(ctx)
	if err != nil {
		c.Refresh()
		return nil, err
	}

	products, err := querycache.Get(ctx, c.cache, querycache.KeyProducts, func(ctx context.Context) ([]product.Product, error) {
		products, err := c.remote.ListProducts(ctx, token)
		if err != nil {
			// Runs even when the caller has stopped waiting.
			return nil, c.handle(ctx, err)
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}

// Categories returns the distinct categories of the current collection.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	products, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return product.Categories(products), nil
}

// Save validates the draft locally and then creates or updates the product.
// Local validation failures return *product.ValidationError without any
// network call.
func (c *Client) Save(ctx context.Context, draft product.Draft, editing bool) (_ product.Product, rerr error) {
	ctx, span := c.tracer.Start(ctx, "catalog.Save", trace.WithAttributes(attribute.Bool("editing", editing)))
	defer func() { endSpan(span, rerr) }()

	p, err := draft.Product()
	if err != nil {
		return product.Product{}, err
	}
	if editing && p.IsNew() {
		return product.Product{}, &product.ValidationError{Field: "id", Message: "missing product id"}
	}

	token, err := c.session.RequireToken(ctx)
	if err != nil {
		return product.Product{}, err
	}

	var saved product.Product
	if editing {
		saved, err = c.remote.UpdateProduct(ctx, token, p)
	} else {
		saved, err = c.remote.CreateProduct(ctx, token, p)
	}
	if err != nil {
		return product.Product{}, c.handle(ctx, err)
	}

	c.cache.Invalidate(querycache.KeyProducts)
	c.lg.Info("Product saved",
		zap.Int64("id", saved.ID),
		zap.String("name", saved.Name),
		zap.Bool("editing", editing),
	)
	return saved, nil
}

// Remove deletes the product with the given ID.
func (c *Client) Remove(ctx context.Context, id int64) (_ bool, rerr error) {
	ctx, span := c.tracer.Start(ctx, "catalog.Remove", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer func() { endSpan(span, rerr) }()

	token, err := c.session.RequireToken(ctx)
	if err != nil {
		return false, err
	}
	if err := c.remote.DeleteProduct(ctx, token, id); err != nil {
		return false, c.handle(ctx, err)
	}

	c.cache.Invalidate(querycache.KeyProducts)
	c.lg.Info("Product removed", zap.Int64("id", id))
	return true, nil
}

// Refresh drops the cached collection so the next List refetches.
func (c *Client) Refresh() {
	c.cache.Invalidate(querycache.KeyProducts)
}

// Logout ends the session and drops the cached collection.
func (c *Client) Logout(ctx context.Context) error {
	c.Refresh()
	return c.session.Logout(ctx)
}

// handle applies the global unauthorized policy: the session is expired, the
// cached collection is dropped and the error is passed through.
func (c *Client) handle(ctx context.Context, err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		c.Refresh()
		c.session.Expire(ctx)
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
