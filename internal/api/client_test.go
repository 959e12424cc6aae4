package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/productos/internal/domain/product"
)

// --- Helpers ---

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   string
}

type recorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.reqs...)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *recorder) {
	t.Helper()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   string(body),
		})
		rec.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, rec
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// --- Tests ---

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.Error(t, err)

	c, err := New("https://localhost:7275/")
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:7275", c.BaseURL())
}

func TestLogin(t *testing.T) {
	t.Run("success returns token", func(t *testing.T) {
		c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"token":"abc","expiration":"2030-01-01T00:00:00Z"}`)
		})

		res, err := c.Login(context.Background(), Credentials{Username: "admin", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, "abc", res.Token)

		reqs := rec.all()
		require.Len(t, reqs, 1)
		got := reqs[0]
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, LoginPath, got.path)
		assert.Empty(t, got.auth)
		assert.JSONEq(t, `{"username":"admin","password":"secret"}`, got.body)
	})

	t.Run("server message surfaced", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnauthorized, `{"message":"Invalid credentials"}`)
		})

		_, err := c.Login(context.Background(), Credentials{Username: "admin", Password: "bad"})
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "Invalid credentials", authErr.Message)
		assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
		assert.False(t, errors.Is(err, ErrUnauthorized))
	})

	t.Run("default message without body", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		})

		_, err := c.Login(context.Background(), Credentials{})
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "login failed", authErr.Message)
	})

	t.Run("missing token", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"user":"admin"}`)
		})

		_, err := c.Login(context.Background(), Credentials{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no token")
	})
}

func TestConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.ListProducts(context.Background(), "tok")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "list products", connErr.Op)
}

func TestListProducts(t *testing.T) {
	t.Run("decodes products", func(t *testing.T) {
		c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `[
				{"id":1,"name":"Widget","price":9.99,"category":"Tools","stock":3},
				{"Id":2,"Name":"Rake","Price":"15.5","Category":"Garden"}
			]`)
		})

		products, err := c.ListProducts(context.Background(), "tok")
		require.NoError(t, err)
		require.Len(t, products, 2)

		assert.Equal(t, int64(1), products[0].ID)
		assert.Equal(t, "Widget", products[0].Name)
		assert.True(t, decimal.RequireFromString("9.99").Equal(products[0].Price))
		assert.Equal(t, "Tools", products[0].Category)
		assert.Equal(t, int64(2), products[1].ID)
		assert.True(t, decimal.RequireFromString("15.5").Equal(products[1].Price))

		reqs := rec.all()
		require.Len(t, reqs, 1)
		assert.Equal(t, ProductsPath, reqs[0].path)
		assert.Equal(t, "Bearer tok", reqs[0].auth)
	})

	t.Run("empty collection", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `[]`)
		})

		products, err := c.ListProducts(context.Background(), "tok")
		require.NoError(t, err)
		assert.NotNil(t, products)
		assert.Empty(t, products)
	})

	t.Run("401 is unauthorized", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := c.ListProducts(context.Background(), "expired")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("other status carries raw text", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "database unavailable\n")
		})

		_, err := c.ListProducts(context.Background(), "tok")
		var rfErr *RequestFailedError
		require.ErrorAs(t, err, &rfErr)
		assert.Equal(t, http.StatusInternalServerError, rfErr.StatusCode)
		assert.Equal(t, "database unavailable", rfErr.Message)
	})
}

func TestCreateProduct(t *testing.T) {
	t.Run("sends id 0 and decodes created product", func(t *testing.T) {
		c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusCreated, `{"id":42,"name":"Widget","price":9.99,"category":"Tools"}`)
		})

		p := product.Product{ID: 99, Name: "Widget", Price: decimal.RequireFromString("9.99"), Category: "Tools"}
		created, err := c.CreateProduct(context.Background(), "tok", p)
		require.NoError(t, err)
		assert.Equal(t, int64(42), created.ID)

		reqs := rec.all()
		require.Len(t, reqs, 1)
		got := reqs[0]
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, ProductItemDir, got.path)
		assert.JSONEq(t, `{"id":0,"name":"Widget","price":9.99,"category":"Tools"}`, got.body)
	})

	t.Run("empty body falls back to sent record", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		p := product.Product{Name: "Widget", Price: decimal.NewFromInt(1), Category: "Tools"}
		created, err := c.CreateProduct(context.Background(), "tok", p)
		require.NoError(t, err)
		assert.Equal(t, "Widget", created.Name)
	})

	t.Run("rejection is validation failure", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"message":"Price must be positive"}`)
		})

		_, err := c.CreateProduct(context.Background(), "tok", product.Product{Name: "x"})
		var vfErr *ValidationFailedError
		require.ErrorAs(t, err, &vfErr)
		assert.Equal(t, "Price must be positive", vfErr.Message)
	})

	t.Run("problem details title", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"title":"One or more validation errors occurred.","status":400}`)
		})

		_, err := c.CreateProduct(context.Background(), "tok", product.Product{Name: "x"})
		var vfErr *ValidationFailedError
		require.ErrorAs(t, err, &vfErr)
		assert.Equal(t, "One or more validation errors occurred.", vfErr.Message)
	})

	t.Run("401 is unauthorized", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := c.CreateProduct(context.Background(), "tok", product.Product{Name: "x"})
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestUpdateProduct(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":7,"name":"Hammer","price":13,"category":"Tools"}`)
	})

	p := product.Product{ID: 7, Name: "Hammer", Price: decimal.NewFromInt(13), Category: "Tools"}
	updated, err := c.UpdateProduct(context.Background(), "tok", p)
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.ID)

	all := rec.all()
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/api/productos/7", got.path)
	assert.JSONEq(t, `{"id":7,"name":"Hammer","price":13,"category":"Tools"}`, got.body)

	_, err = c.UpdateProduct(context.Background(), "tok", product.Product{Name: "no id"})
	require.Error(t, err)
	assert.Len(t, rec.all(), 1, "update without id must not reach the network")
}

func TestUpdateProduct_FailureClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		validation bool
		message    string
	}{
		{"bad request", http.StatusBadRequest, `{"message":"Name is required"}`, true, "Name is required"},
		{"unprocessable", http.StatusUnprocessableEntity, `{"title":"Invalid price","status":422}`, true, "Invalid price"},
		{"vanished id", http.StatusNotFound, `{"message":"Product 7 not found"}`, false, "Product 7 not found"},
		{"server error", http.StatusInternalServerError, ``, false, "failed to save product"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			p := product.Product{ID: 7, Name: "Hammer", Price: decimal.NewFromInt(13), Category: "Tools"}
			_, err := c.UpdateProduct(context.Background(), "tok", p)
			require.Error(t, err)

			var vfErr *ValidationFailedError
			var rfErr *RequestFailedError
			if tt.validation {
				require.ErrorAs(t, err, &vfErr)
				assert.Equal(t, tt.status, vfErr.StatusCode)
				assert.Equal(t, tt.message, vfErr.Message)
				assert.False(t, errors.As(err, &rfErr))
				return
			}
			require.ErrorAs(t, err, &rfErr)
			assert.Equal(t, "update product", rfErr.Op)
			assert.Equal(t, tt.status, rfErr.StatusCode)
			assert.Equal(t, tt.message, rfErr.Message)
			assert.False(t, errors.As(err, &vfErr))
		})
	}
}

func TestDeleteProduct(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, rec := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, c.DeleteProduct(context.Background(), "tok", 5))
		reqs := rec.all()
		require.Len(t, reqs, 1)
		assert.Equal(t, http.MethodDelete, reqs[0].method)
		assert.Equal(t, "/api/productos/5", reqs[0].path)
	})

	t.Run("not found carries server message", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"message":"Product 5 not found"}`)
		})

		err := c.DeleteProduct(context.Background(), "tok", 5)
		var rfErr *RequestFailedError
		require.ErrorAs(t, err, &rfErr)
		assert.Equal(t, http.StatusNotFound, rfErr.StatusCode)
		assert.Equal(t, "Product 5 not found", rfErr.Message)
	})
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
		unauth  bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: true, unauth: true},
		{name: "server error", status: http.StatusBadGateway, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, `[]`)
			})

			err := c.Probe(context.Background(), "tok")
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.unauth, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message field", body: `{"message":"boom"}`, want: "boom"},
		{name: "message wins over title", body: `{"title":"t","Message":"m"}`, want: "m"},
		{name: "title field", body: `{"title":"bad request"}`, want: "bad request"},
		{name: "object without message", body: `{"code":1}`, want: "fallback"},
		{name: "null message", body: `{"message":null}`, want: "fallback"},
		{name: "raw text", body: "  plain failure  ", want: "plain failure"},
		{name: "empty", body: "", want: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorMessage([]byte(tt.body), "fallback"))
		})
	}
}

func TestDecodeDecimal(t *testing.T) {
	for input, want := range map[string]string{
		`9.99`:   "9.99",
		`"9.99"`: "9.99",
		`1e2`:    "100",
	} {
		got, err := DecodeDecimal(jx.DecodeStr(input))
		require.NoError(t, err, input)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "input %s: got %s", input, got)
	}

	_, err := DecodeDecimal(jx.DecodeStr(`true`))
	require.Error(t, err)
}
