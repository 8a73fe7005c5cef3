package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Load reads .env (when present) into the process environment and parses Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyDerivedDefaults fills settings whose defaults depend on other settings.
func (c *Config) applyDerivedDefaults() {
	returnURL := strings.TrimRight(c.BaseURL, "/") + "/api/payments/paytr/callback"
	if c.Paytr.OkURL == "" {
		c.Paytr.OkURL = returnURL + "?status=success"
	}
	if c.Paytr.FailURL == "" {
		c.Paytr.FailURL = returnURL + "?status=failed"
	}
}

// Validate rejects values env.Parse accepts but the server cannot run with.
func (c *Config) Validate() error {
	limits := []struct {
		name   string
		max    int
		window time.Duration
	}{
		{"RATE_LIMIT_PAGE_VIEW", c.RateLimit.PageViewMax, c.RateLimit.PageViewWindow},
		{"RATE_LIMIT_CHECKOUT", c.RateLimit.CheckoutMax, c.RateLimit.CheckoutWindow},
		{"RATE_LIMIT_API", c.RateLimit.APIMax, c.RateLimit.APIWindow},
	}

	var errs []error
	for _, l := range limits {
		if l.max <= 0 {
			errs = append(errs, fmt.Errorf("%s_MAX must be positive, got %d", l.name, l.max))
		}
		if l.window <= 0 {
			errs = append(errs, fmt.Errorf("%s_WINDOW must be positive, got %s", l.name, l.window))
		}
	}
	if c.Reconcile.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_BATCH_SIZE must be positive, got %d", c.Reconcile.BatchSize))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (l Log) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
