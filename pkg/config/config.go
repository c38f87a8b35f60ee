package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// EnvDevelopment enables echoing of internal error messages to clients.
const EnvDevelopment = "development"

// RequiredEnvVars are the variables the tunnel refuses to start without.
var RequiredEnvVars = []string{"DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "SERVER_PORT"}

// Config holds all configuration for the tunnel.
// Values come from the process environment, optionally seeded from a .env file.
// Variables already present in the environment are never overwritten by .env.
type Config struct {
	// Server configuration
	Port string `env:"SERVER_PORT"`
	Env  string `env:"ENVIRONMENT" env-default:"production"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	// BodyLimitBytes caps the size of a JSON request body.
	BodyLimitBytes int64 `env:"BODY_LIMIT_BYTES" env-default:"52428800"`

	// CORSAllowedOrigins is a comma-separated origin list; "*" allows any.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"*"`

	// MetricsEnabled exposes GET /metrics in Prometheus format.
	MetricsEnabled bool `env:"METRICS_ENABLED" env-default:"false"`

	ShutdownTimeoutSeconds int `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"10"`

	// Database configuration
	Database DatabaseConfig
}

// DatabaseConfig holds the target database connection settings.
type DatabaseConfig struct {
	Type     string `env:"DB_TYPE" env-default:"mysql"`
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT"` // 0 means the dialect default
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Database string `env:"DB_NAME"`

	// PoolMaxConns bounds concurrent sessions. Callers beyond it wait for a lease.
	PoolMaxConns int32 `env:"DB_POOL_MAX_CONNS" env-default:"10"`
	PoolMinConns int32 `env:"DB_POOL_MIN_CONNS" env-default:"0"`

	// BootstrapRetries is how often the create-database connection is retried on transient errors.
	BootstrapRetries int `env:"BOOTSTRAP_RETRIES" env-default:"3"`

	// SSLMode is used by the postgres and sqlserver dialects.
	SSLMode string `env:"DB_SSLMODE" env-default:"disable"`
}

// MissingEnvError lists every mandatory environment variable that was unset or empty.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Names, ", ")
}

// Load reads an optional .env file from the working directory and then the
// process environment. Every missing mandatory variable is reported at once.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	if missing := missingEnvVars(os.LookupEnv); len(missing) > 0 {
		return nil, &MissingEnvError{Names: missing}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func missingEnvVars(lookup func(string) (string, bool)) []string {
	var missing []string
	for _, name := range RequiredEnvVars {
		if v, ok := lookup(name); !ok || v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func (c *Config) validate() error {
	if c.Database.PoolMaxConns <= 0 {
		return fmt.Errorf("DB_POOL_MAX_CONNS must be positive, got %d", c.Database.PoolMaxConns)
	}
	if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
		return fmt.Errorf("DB_POOL_MIN_CONNS must be between 0 and DB_POOL_MAX_CONNS, got %d", c.Database.PoolMinConns)
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT out of range: %d", c.Database.Port)
	}
	if c.BodyLimitBytes <= 0 {
		return fmt.Errorf("BODY_LIMIT_BYTES must be positive, got %d", c.BodyLimitBytes)
	}
	return nil
}

// IsDevelopment reports whether internal error messages may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// AllowedOrigins returns the parsed CORS origin list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// PortOr returns the configured port or def when DB_PORT is unset.
func (c *DatabaseConfig) PortOr(def int) int {
	if c.Port == 0 {
		return def
	}
	return c.Port
}

// DialHost is the host used to reach the database, adjusted when the tunnel runs in Docker.
func (c *DatabaseConfig) DialHost() string {
	return ResolveHostForDocker(c.Host)
}
