package client

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// Config holds the client configuration, loadable from environment variables
// (PRODUCTOS_ prefix), a .env file and YAML config files. Command-line flags
// are owned by the CLI and applied on top.
type Config struct {
	BaseURL   string        `default:"https://localhost:7275" usage:"Remote API base URL"`
	StateFile string        `usage:"File persisting the session token"`
	Insecure  bool          `default:"false" usage:"Skip TLS certificate verification"`
	Timeout   time.Duration `default:"0s" usage:"Per-request timeout; zero uses transport defaults"`
	LogLevel  string        `default:"warn" usage:"Log level"`
	Cache     CacheConfig
}

// CacheConfig controls read retries of the product list.
type CacheConfig struct {
	Retries    int           `default:"1" usage:"Retries of a failed list request"`
	RetryDelay time.Duration `default:"1s" usage:"Delay between list retries"`
}

// LoadConfig loads .env (when present) and then the configuration.
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	if len(files) == 0 {
		files = []string{"productos.yaml"}
		if dir, err := os.UserConfigDir(); err == nil {
			files = append(files, dir+"/productos/config.yaml")
		}
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		// PRODUCTOS_STUB_* belongs to the stub server.
		EnvPrefix:        "PRODUCTOS",
		AllowUnknownEnvs: true,
		SkipFlags:        true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, cfg.Validate()
}

// Validate checks values that cannot be expressed as tags.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if c.Cache.Retries < 0 {
		return errors.Errorf("cache retries must not be negative, got %d", c.Cache.Retries)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log level %q", c.LogLevel)
	}
	return nil
}
