// Command seed-db loads products from a JSON or gzipped JSON file into the
// stub API's PostgreSQL database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/productos/internal/storage/postgres"
	"github.com/xenking/productos/internal/stubapi"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		reset        bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON or .json.gz file")
	flag.BoolVar(&reset, "reset", false, "delete existing products first")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, reset); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, reset bool) error {
	slog.Info("reading products file", slog.String("path", productsFile))
	products, err := stubapi.LoadSeed(productsFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)
	if reset {
		existing, err := repo.List(ctx)
		if err != nil {
			return err
		}
		for _, p := range existing {
			if err := repo.Delete(ctx, p.ID); err != nil {
				return err
			}
		}
		slog.Info("removed existing products", slog.Int("count", len(existing)))
	}

	if err := stubapi.Seed(ctx, repo, products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}
