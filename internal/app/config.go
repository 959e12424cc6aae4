package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the stub API server configuration, loadable from environment
// variables (PRODUCTOS_STUB_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"127.0.0.1:5031" usage:"Stub API listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL; empty keeps products in memory" flag:"database-url"`
	SeedFile    string `usage:"JSON or gzipped JSON file with initial products" flag:"seed-file"`
	TLSCert     string `env:"TLS_CERT" usage:"TLS certificate file; serves HTTPS together with tls-key" flag:"tls-cert"`
	TLSKey      string `env:"TLS_KEY" usage:"TLS private key file" flag:"tls-key"`
	Auth        AuthConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig is the single account accepted by the stub.
type AuthConfig struct {
	Username string `default:"admin" usage:"Accepted username"`
	Password string `default:"admin" usage:"Accepted password"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"0s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"10s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from flags, environment variables and YAML
// config files.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:  "PRODUCTOS_STUB",
		Args:       args,
		Files:      []string{"productos-stub.yaml", "/etc/productos/stub.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, errors.New("tls-cert and tls-key must be set together")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL variable.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
}

// Storage names the product storage the stub runs on.
func (c *Config) Storage() string {
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "memory"
}
