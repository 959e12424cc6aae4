// Command productos-stub serves a local double of the product API.
package main

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/productos/internal/app"
)

const serviceName = "productos-stub"

func main() {
	// Telemetry resources are named from the environment.
	if _, ok := os.LookupEnv("OTEL_SERVICE_NAME"); !ok {
		_ = os.Setenv("OTEL_SERVICE_NAME", serviceName)
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "load config")
		}

		lg = lg.Named("stub").With(zap.String("service", serviceName))
		lg.Info("Starting product API stub",
			zap.String("storage", cfg.Storage()),
			zap.String("seed", cfg.SeedFile),
			zap.Bool("tls", cfg.TLSCert != ""),
		)
		return appkg.Run(ctx, lg, m, cfg)
	})
}
