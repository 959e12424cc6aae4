// Package app wires and runs the stub API server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/domain/product"
	"github.com/xenking/productos/internal/storage/memory"
	"github.com/xenking/productos/internal/storage/postgres"
	"github.com/xenking/productos/internal/stubapi"
	"github.com/xenking/productos/pkg/health"
	"github.com/xenking/productos/pkg/httpmiddleware"
)

// Stub is a fully wired stub API.
type Stub struct {
	Handler http.Handler
	Health  *health.Health
	API     *stubapi.Server

	closers []func()
}

// Close releases the storage backend.
func (s *Stub) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build creates storage, seeds it and assembles the HTTP handler with health
// endpoints and the middleware chain. Nil providers disable telemetry.
func Build(ctx context.Context, lg *zap.Logger, tp trace.TracerProvider, mp metric.MeterProvider, cfg *Config) (*Stub, error) {
	s := &Stub{Health: health.New()}

	var repo product.Repository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		s.Health.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
		repo = postgres.NewProductRepository(pool)
		lg.Info("Using PostgreSQL storage")
	} else {
		repo = memory.NewProductRepository()
		lg.Info("Using in-memory storage")
	}

	if cfg.SeedFile != "" {
		products, err := stubapi.LoadSeed(cfg.SeedFile)
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "load seed")
		}
		if err := stubapi.Seed(ctx, repo, products); err != nil {
			s.Close()
			return nil, err
		}
		lg.Info("Seeded products", zap.Int("count", len(products)), zap.String("file", cfg.SeedFile))
	}
	s.Health.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	s.API = stubapi.New(repo, stubapi.Credentials{
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
	})

	r := chi.NewRouter()
	r.Get("/livez", s.Health.LiveEndpoint)
	r.Get("/readyz", s.Health.ReadyEndpoint)
	r.Mount("/", s.API.Routes())

	var otelOpts []otelhttp.Option
	if tp != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tp))
	}
	if mp != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(mp))
	}

	s.Handler = httpmiddleware.Wrap(r,
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			Origins: cfg.CORS.Origins,
			Headers: []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
			MaxAge:  86400,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.LogRequests(),
		func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "productos-stub", otelOpts...)
		},
	)
	return s, nil
}

// Run builds the stub, starts the HTTP server, and handles graceful shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	stub, err := Build(ctx, lg, m.TracerProvider(), m.MeterProvider(), cfg)
	if err != nil {
		return err
	}
	defer stub.Close()

	stub.Health.Start(ctx, 10*time.Second)
	stub.Health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           stub.Handler,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		stub.Health.SetReady(false)
		if d := cfg.Graceful.ReadinessDelay; d > 0 {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", d))
			time.Sleep(d)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		stub.Health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSCert != ""))
	if cfg.TLSCert != "" {
		err = server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
