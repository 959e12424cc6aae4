// Package client assembles the product catalog client from configuration:
// transport, persisted session, query cache and repository client.
package client

import (
	"net/http"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/productos/internal/api"
	"github.com/xenking/productos/internal/catalog"
	"github.com/xenking/productos/internal/querycache"
	"github.com/xenking/productos/internal/session"
	"github.com/xenking/productos/internal/storage/file"
)

// Client bundles the wired components.
type Client struct {
	API     *api.Client
	Session *session.Manager
	Catalog *catalog.Client
	Store   session.Store
}

// Options customize New.
type Options struct {
	Logger         *zap.Logger
	Navigator      session.Navigator
	Store          session.Store
	HTTPClient     *http.Client
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// New wires a Client from cfg. Unset options fall back to a nop logger, the
// state file store and an instrumented HTTP client.
func New(cfg *Config, opts Options) (*Client, error) {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	store := opts.Store
	if store == nil {
		path := cfg.StateFile
		if path == "" {
			p, err := file.DefaultPath()
			if err != nil {
				return nil, errors.Wrap(err, "state file path")
			}
			path = p
		}
		store = file.New(path)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = api.NewHTTPClient(api.TransportConfig{
			Timeout:  cfg.Timeout,
			Insecure: cfg.Insecure,
		}, opts.TracerProvider, opts.MeterProvider)
	}

	apiClient, err := api.New(cfg.BaseURL,
		api.WithHTTPClient(httpClient),
		api.WithLogger(lg.Named("api")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create api client")
	}

	cache, err := querycache.New(querycache.Config{
		Retries:    cfg.Cache.Retries,
		RetryDelay: cfg.Cache.RetryDelay,
		NoRetry: func(err error) bool {
			return errors.Is(err, api.ErrUnauthorized)
		},
	}, opts.MeterProvider, lg.Named("cache"))
	if err != nil {
		return nil, errors.Wrap(err, "create query cache")
	}

	sess := session.NewManager(store, apiClient, opts.Navigator, lg.Named("session"))
	cat := catalog.New(sess, apiClient, cache, opts.TracerProvider, lg.Named("catalog"))
	sess.OnEnd(cat.Refresh)
	return &Client{
		API:     apiClient,
		Session: sess,
		Catalog: cat,
		Store:   store,
	}, nil
}

// NewLogger builds the console logger used by the CLI. Output goes to stderr.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
