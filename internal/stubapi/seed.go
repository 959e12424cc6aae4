package stubapi

import (
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"

	"github.com/xenking/productos/internal/api"
	"github.com/xenking/productos/internal/domain/product"
)

// LoadSeed reads a JSON array of products from path. Files ending in .gz are
// decompressed first.
func LoadSeed(path string) ([]product.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	return ReadSeed(r)
}

// ReadSeed decodes a JSON array of products.
func ReadSeed(r io.Reader) ([]product.Product, error) {
	products, err := api.DecodeProducts(jx.Decode(r, 4096))
	if err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return products, nil
}
