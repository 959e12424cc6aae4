// Package stubapi is a development double of the remote product API. It
// serves the same routes and payloads the client depends on, backed by any
// product.Repository.
package stubapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/api"
	"github.com/xenking/productos/internal/domain/product"
)

const maxBodySize = 1 << 20

// Credentials is the single account accepted by the stub.
type Credentials struct {
	Username string
	Password string
}

// Server implements the stub API handlers.
type Server struct {
	repo  product.Repository
	creds Credentials

	mu     sync.RWMutex
	tokens map[string]string // token -> username
}

// New creates a Server that accepts only creds.
func New(repo product.Repository, creds Credentials) *Server {
	return &Server{
		repo:   repo,
		creds:  creds,
		tokens: make(map[string]string),
	}
}

// Routes returns the API router. Product routes are registered under both
// path casings the client uses.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post(api.LoginPath, s.login)
	r.Post(strings.ToLower(api.LoginPath), s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		for _, base := range []string{api.ProductsPath, api.ProductItemDir} {
			r.Get(base, s.listProducts)
			r.Post(base, s.createProduct)
			r.Put(base+"/{id}", s.updateProduct)
			r.Delete(base+"/{id}", s.deleteProduct)
		}
	})
	return r
}

// IssueToken registers a new bearer token. Used by login and by tests.
func (s *Server) IssueToken(username string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = username
	s.mu.Unlock()
	return token
}

// RevokeToken invalidates a token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok {
			s.mu.RLock()
			_, ok = s.tokens[token]
			s.mu.RUnlock()
		}
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var username, password string
	if err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch strings.ToLower(string(key)) {
		case "username":
			username, err = d.Str()
		case "password":
			password, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	}); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if username != s.creds.Username || password != s.creds.Password {
		zctx.From(r.Context()).Info("Login rejected", zap.String("username", username))
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token := s.IssueToken(username)
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("token", func(e *jx.Encoder) { e.Str(token) })
		e.Field("username", func(e *jx.Encoder) { e.Str(username) })
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.repo.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.EncodeProducts(products))
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	if msg := validate(p); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	created, err := s.repo.Create(r.Context(), p)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Product created", zap.Int64("id", created.ID))
	writeJSON(w, http.StatusCreated, api.EncodeProduct(created))
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	if p.ID != 0 && p.ID != id {
		writeMessage(w, http.StatusBadRequest, "Product id does not match the route")
		return
	}
	p.ID = id
	if msg := validate(p); msg != "" {
		writeMessage(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := s.repo.Update(r.Context(), p)
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound(id))
	case err != nil:
		s.internalError(w, r, err)
	default:
		zctx.From(r.Context()).Info("Product updated", zap.Int64("id", id))
		writeJSON(w, http.StatusOK, api.EncodeProduct(updated))
	}
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := s.repo.Delete(r.Context(), id)
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound(id))
	case err != nil:
		s.internalError(w, r, err)
	default:
		zctx.From(r.Context()).Info("Product deleted", zap.Int64("id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Repository failure", zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

// validate applies the server-side product rules and returns the first
// failing rule's message.
func validate(p product.Product) string {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return "Name is required"
	case strings.TrimSpace(p.Category) == "":
		return "Category is required"
	case !p.Price.IsPositive():
		return "Price must be greater than zero"
	default:
		return ""
	}
}

func notFound(id int64) string {
	return "Product " + strconv.FormatInt(id, 10) + " not found"
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid product id")
		return 0, false
	}
	return id, true
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (product.Product, bool) {
	body, err := readBody(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request body")
		return product.Product{}, false
	}
	p, err := api.DecodeProduct(jx.DecodeBytes(body))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request body")
		return product.Product{}, false
	}
	return p, true
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

// writeProblem writes an RFC 7807 problem details body.
func writeProblem(w http.ResponseWriter, status int, title string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("title", func(e *jx.Encoder) { e.Str(title) })
		e.Field("status", func(e *jx.Encoder) { e.Int(status) })
	})
	w.Header().Set("Content-Type", "application/problem+json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// Seed creates every product in repo.
func Seed(ctx context.Context, repo product.Repository, products []product.Product) error {
	for _, p := range products {
		if _, err := repo.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "seed product %q", p.Name)
		}
	}
	return nil
}
