package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/productos/internal/api"
	"github.com/xenking/productos/internal/domain/product"
	"github.com/xenking/productos/internal/querycache"
	"github.com/xenking/productos/internal/session"
	"github.com/xenking/productos/internal/storage/memory"
)

// --- Mock implementations ---

// fakeRemote is an in-memory product API that enforces a single valid token.
type fakeRemote struct {
	mu       sync.Mutex
	token    string
	nextID   int64
	products []product.Product
	calls    []string
	sent     []product.Product
	listErr  error

	listDelay time.Duration
}

func newFakeRemote(token string, products ...product.Product) *fakeRemote {
	r := &fakeRemote{token: token, nextID: 1}
	for _, p := range products {
		r.products = append(r.products, p)
		if p.ID >= r.nextID {
			r.nextID = p.ID + 1
		}
	}
	return r
}

func (r *fakeRemote) check(token, call string) error {
	r.calls = append(r.calls, call)
	if token != r.token {
		return errors.Wrap(api.ErrUnauthorized, call)
	}
	return nil
}

func (r *fakeRemote) ListProducts(_ context.Context, token string) ([]product.Product, error) {
	time.Sleep(r.listDelay)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(token, "list"); err != nil {
		return nil, err
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]product.Product(nil), r.products...), nil
}

func (r *fakeRemote) CreateProduct(_ context.Context, token string, p product.Product) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(token, "create"); err != nil {
		return product.Product{}, err
	}
	r.sent = append(r.sent, p)
	p.ID = r.nextID
	r.nextID++
	r.products = append(r.products, p)
	return p, nil
}

func (r *fakeRemote) UpdateProduct(_ context.Context, token string, p product.Product) (product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(token, "update"); err != nil {
		return product.Product{}, err
	}
	r.sent = append(r.sent, p)
	for i := range r.products {
		if r.products[i].ID == p.ID {
			r.products[i] = p
			return p, nil
		}
	}
	return product.Product{}, &api.RequestFailedError{Op: "save product", StatusCode: 404, Message: "Product not found"}
}

func (r *fakeRemote) DeleteProduct(_ context.Context, token string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(token, "delete"); err != nil {
		return err
	}
	for i := range r.products {
		if r.products[i].ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			return nil
		}
	}
	return &api.RequestFailedError{Op: "delete product", StatusCode: 404, Message: fmt.Sprintf("Product %d not found", id)}
}

// rotate makes the server accept only token from now on.
func (r *fakeRemote) rotate(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = token
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type nopAuth struct{}

func (nopAuth) Login(context.Context, api.Credentials) (*api.LoginResult, error) {
	return nil, errors.New("not used")
}
func (nopAuth) Probe(context.Context, string) error { return nil }

// --- Helpers ---

type fixture struct {
	client *Client
	sess   *session.Manager
	remote *fakeRemote
	store  *memory.Store
}

func newFixture(t *testing.T, storedToken string, products ...product.Product) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	if storedToken != "" {
		require.NoError(t, store.Set(ctx, session.TokenKey, storedToken))
	}
	sess := session.NewManager(store, nopAuth{}, nil, nil)

	cache, err := querycache.New(querycache.Config{
		Retries: 1,
		NoRetry: func(err error) bool { return errors.Is(err, api.ErrUnauthorized) },
	}, nil, nil)
	require.NoError(t, err)

	remote := newFakeRemote("valid", products...)
	return &fixture{
		client: New(sess, remote, cache, nil, nil),
		sess:   sess,
		remote: remote,
		store:  store,
	}
}

func (f *fixture) token(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := f.store.Get(context.Background(), session.TokenKey)
	require.NoError(t, err)
	return v, ok
}

func hammer() product.Product {
	return product.Product{ID: 1, Name: "Hammer", Price: decimal.RequireFromString("12.50"), Category: "Tools"}
}

// --- Tests ---

func TestSave_LocalValidationSkipsNetwork(t *testing.T) {
	drafts := []product.Draft{
		{Name: "", Price: "1", Category: "Tools"},
		{Name: "Widget", Price: "1", Category: " "},
		{Name: "Widget", Price: "0", Category: "Tools"},
		{Name: "Widget", Price: "-3", Category: "Tools"},
		{Name: "Widget", Price: "abc", Category: "Tools"},
		{Name: "Widget", Price: "", Category: "Tools"},
	}

	for _, d := range drafts {
		t.Run(fmt.Sprintf("%q/%q/%q", d.Name, d.Price, d.Category), func(t *testing.T) {
			f := newFixture(t, "valid")

			_, err := f.client.Save(context.Background(), d, false)
			var vErr *product.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Zero(t, f.remote.callCount())
		})
	}
}

func TestSave_CreateThenListReflectsChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "valid", hammer())

	before, err := f.client.List(ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)

	created, err := f.client.Save(ctx, product.Draft{Name: "Widget", Price: "9.99", Category: "Tools"}, false)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(0), f.remote.sent[0].ID, "creation is sent with id 0")

	after, err := f.client.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 2)

	var widget *product.Product
	for i := range after {
		if after[i].Name == "Widget" {
			widget = &after[i]
		}
	}
	require.NotNil(t, widget)
	assert.True(t, decimal.RequireFromString("9.99").Equal(widget.Price))
	assert.Equal(t, "Tools", widget.Category)
}

func TestSave_EditPreservesIDAndSendsFullRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "valid", hammer())

	products, err := f.client.List(ctx)
	require.NoError(t, err)

	d := product.DraftFrom(products[0])
	d.Set(product.FieldPrice, "14")

	saved, err := f.client.Save(ctx, d, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.ID)

	require.Len(t, f.remote.sent, 1)
	sent := f.remote.sent[0]
	assert.Equal(t, int64(1), sent.ID)
	assert.Equal(t, "Hammer", sent.Name)
	assert.Equal(t, "Tools", sent.Category)
	assert.True(t, decimal.NewFromInt(14).Equal(sent.Price))

	after, err := f.client.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, decimal.NewFromInt(14).Equal(after[0].Price))
}

func TestSave_EditWithoutID(t *testing.T) {
	f := newFixture(t, "valid")
	_, err := f.client.Save(context.Background(), product.Draft{Name: "x", Price: "1", Category: "y"}, true)
	var vErr *product.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Zero(t, f.remote.callCount())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("removal reflected in next list", func(t *testing.T) {
		f := newFixture(t, "valid", hammer())
		_, err := f.client.List(ctx)
		require.NoError(t, err)

		ok, err := f.client.Remove(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)

		after, err := f.client.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, after)
	})

	t.Run("missing id surfaces server message", func(t *testing.T) {
		f := newFixture(t, "valid", hammer())

		ok, err := f.client.Remove(ctx, 99)
		assert.False(t, ok)
		var rfErr *api.RequestFailedError
		require.ErrorAs(t, err, &rfErr)
		assert.Equal(t, "Product 99 not found", rfErr.Message)

		_, stillThere := f.token(t)
		assert.True(t, stillThere)
	})
}

func TestUnauthorizedClearsToken(t *testing.T) {
	ctx := context.Background()

	ops := map[string]func(c *Client) error{
		"list": func(c *Client) error {
			_, err := c.List(ctx)
			return err
		},
		"create": func(c *Client) error {
			_, err := c.Save(ctx, product.Draft{Name: "Widget", Price: "1", Category: "Tools"}, false)
			return err
		},
		"update": func(c *Client) error {
			id := int64(1)
			_, err := c.Save(ctx, product.Draft{ID: &id, Name: "Widget", Price: "1", Category: "Tools"}, true)
			return err
		},
		"delete": func(c *Client) error {
			_, err := c.Remove(ctx, 1)
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, "expired", hammer())

			err := op(f.client)
			require.ErrorIs(t, err, api.ErrUnauthorized)

			_, ok := f.token(t)
			assert.False(t, ok, "token must be cleared")
		})
	}
}

func TestList_UnauthorizedNotRetried(t *testing.T) {
	f := newFixture(t, "expired")
	_, err := f.client.List(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, 1, f.remote.callCount())
}

func TestList_NoTokenSkipsNetwork(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.client.List(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Zero(t, f.remote.callCount())
}

func TestList_RetriesOnceOnFailure(t *testing.T) {
	f := newFixture(t, "valid")
	f.remote.listErr = &api.RequestFailedError{Op: "list products", StatusCode: 500, Message: "boom"}

	_, err := f.client.List(context.Background())
	var rfErr *api.RequestFailedError
	require.ErrorAs(t, err, &rfErr)
	assert.Equal(t, 2, f.remote.callCount())
}

func TestCategories(t *testing.T) {
	f := newFixture(t, "valid",
		product.Product{ID: 1, Name: "a", Price: decimal.NewFromInt(1), Category: "Tools"},
		product.Product{ID: 2, Name: "b", Price: decimal.NewFromInt(1), Category: "Garden"},
		product.Product{ID: 3, Name: "c", Price: decimal.NewFromInt(1), Category: "Tools"},
	)

	cats, err := f.client.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Tools", "Garden"}, cats)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "valid", hammer())

	_, err := f.client.List(ctx)
	require.NoError(t, err)
	_, err = f.client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.remote.callCount())

	f.client.Refresh()
	_, err = f.client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.remote.callCount())
}

func TestList_CacheDroppedWhenSessionEnds(t *testing.T) {
	ctx := context.Background()

	logouts := map[string]func(f *fixture) error{
		"catalog logout": func(f *fixture) error { return f.client.Logout(ctx) },
		"session logout": func(f *fixture) error { return f.sess.Logout(ctx) },
	}

	for name, logout := range logouts {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, "valid", hammer())

			products, err := f.client.List(ctx)
			require.NoError(t, err)
			require.Len(t, products, 1)

			require.NoError(t, logout(f))

			products, err = f.client.List(ctx)
			require.ErrorIs(t, err, api.ErrUnauthorized)
			assert.Nil(t, products)
			assert.Equal(t, 1, f.remote.callCount(), "no request without a token")

			require.NoError(t, f.store.Set(ctx, session.TokenKey, "valid"))
			_, err = f.client.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, f.remote.callCount(), "new session refetches")
		})
	}
}

func TestList_AfterMutationUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "valid", hammer())

	_, err := f.client.List(ctx)
	require.NoError(t, err)

	f.remote.rotate("rotated")
	_, err = f.client.Save(ctx, product.Draft{Name: "Widget", Price: "9.99", Category: "Tools"}, false)
	require.ErrorIs(t, err, api.ErrUnauthorized)
	_, ok := f.token(t)
	require.False(t, ok)

	products, err := f.client.List(ctx)
	require.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Nil(t, products)
	assert.Equal(t, 2, f.remote.callCount())

	require.NoError(t, f.store.Set(ctx, session.TokenKey, "rotated"))
	_, err = f.client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, f.remote.callCount(), "cached snapshot was dropped")
}

func TestList_UnauthorizedAfterCallerGaveUp(t *testing.T) {
	f := newFixture(t, "expired", hammer())
	f.remote.listDelay = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.client.List(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		_, ok, err := f.store.Get(context.Background(), session.TokenKey)
		return err == nil && !ok
	}, time.Second, 10*time.Millisecond, "rejected token must be cleared")
}
