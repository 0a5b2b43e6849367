// Package config loads Cooper's runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	HTTPAddr   string `env:"COOPER_HTTP_ADDR"   envDefault:":8080"`
	DBPath     string `env:"COOPER_DB_PATH"     envDefault:"./data/cooper.db"`
	CORSOrigin string `env:"COOPER_CORS_ORIGIN"`

	JWTSecret string        `env:"COOPER_JWT_SECRET"`
	JWTTTL    time.Duration `env:"COOPER_JWT_TTL"    envDefault:"24h"`

	Provider ProviderConfig `envPrefix:"COOPER_PROVIDER_"`

	SweepInterval  time.Duration `env:"COOPER_SWEEP_INTERVAL"   envDefault:"1m"`
	SweepBatch     int           `env:"COOPER_SWEEP_BATCH"      envDefault:"100"`
	ReleaseLease   time.Duration `env:"COOPER_RELEASE_LEASE"    envDefault:"5m"`
	ShutdownPeriod time.Duration `env:"COOPER_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// OTELEndpoint enables trace export when set, e.g. "http://localhost:4318".
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"cooper"`
}

// ProviderConfig configures the payment provider client.
type ProviderConfig struct {
	BaseURL  string        `env:"BASE_URL"`
	APIKey   string        `env:"API_KEY"`
	Currency string        `env:"CURRENCY" envDefault:"USD"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"10s"`

	BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWTSecret) < 16 {
		errs = append(errs, "COOPER_JWT_SECRET must be at least 16 characters")
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, "COOPER_JWT_TTL must be positive")
	}
	if c.DBPath == "" {
		errs = append(errs, "COOPER_DB_PATH is required")
	}

	if c.Provider.BaseURL == "" {
		errs = append(errs, "COOPER_PROVIDER_BASE_URL is required")
	} else if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "COOPER_PROVIDER_BASE_URL must be an absolute URL")
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, "COOPER_PROVIDER_API_KEY is required")
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, "COOPER_PROVIDER_TIMEOUT must be positive")
	}

	if c.SweepInterval <= 0 {
		errs = append(errs, "COOPER_SWEEP_INTERVAL must be positive")
	}
	if c.SweepBatch <= 0 {
		errs = append(errs, "COOPER_SWEEP_BATCH must be positive")
	}
	if c.ReleaseLease < time.Second {
		errs = append(errs, "COOPER_RELEASE_LEASE must be at least 1s")
	} else if c.Provider.Timeout > 0 && c.ReleaseLease < 2*c.Provider.Timeout {
		errs = append(errs, "COOPER_RELEASE_LEASE must be at least twice COOPER_PROVIDER_TIMEOUT")
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	if len(errs) > 0 {
		return errors.New("configuration validation failed:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
