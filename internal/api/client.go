// Package api is the HTTP transport for the remote product API. It issues the
// raw calls, encodes and decodes the wire format and classifies failures into
// ConnectionError, ErrUnauthorized, ValidationFailedError, RequestFailedError
// and AuthError.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Endpoint paths of the remote API. The collection read uses the
// capitalised form, mutations the lowercase one.
const (
	LoginPath      = "/api/Auth/login"
	ProductsPath   = "/api/Productos"
	ProductItemDir = "/api/productos"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 << 20

// TransportConfig controls the underlying HTTP client.
type TransportConfig struct {
	// Timeout is the overall per-request timeout. Zero leaves it to the
	// transport defaults.
	Timeout time.Duration
	// Insecure disables TLS certificate verification, for local development
	// APIs with self-signed certificates.
	Insecure bool
}

// NewHTTPClient returns an http.Client whose transport is instrumented with
// otelhttp.
func NewHTTPClient(cfg TransportConfig, tp trace.TracerProvider, mp metric.MeterProvider) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for dev certificates
	}

	var opts []otelhttp.Option
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	if mp != nil {
		opts = append(opts, otelhttp.WithMeterProvider(mp))
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: otelhttp.NewTransport(base, opts...),
	}
}

// Client issues requests against the remote API. Protected calls take the
// bearer token explicitly; the client holds no session state.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	lg      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(lg *zap.Logger) Option {
	return func(cl *Client) {
		cl.lg = lg
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("base URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    http.DefaultClient,
		lg:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// response is a fully read HTTP response.
type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do sends a request and reads the whole body. Transport failures are
// reported as *ConnectionError; HTTP status handling is left to the caller.
func (c *Client) do(ctx context.Context, op, method, path, token string, body []byte) (*response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, rd)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.lg.Debug("Request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &ConnectionError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &ConnectionError{Op: op, Err: errors.Wrap(err, "read body")}
	}

	c.lg.Debug("Request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", req.Header.Get("X-Request-ID")),
	)

	return &response{status: resp.StatusCode, body: data}, nil
}
