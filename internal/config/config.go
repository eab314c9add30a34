// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Port   string `env:"PORT" envDefault:"8081"`
	DBPath string `env:"LABSTOCK_DB_PATH" envDefault:"data/labstock.db"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"labstock"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"purchase_imports"`

	GoogleCredentialsPath string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	SpreadsheetID         string `env:"GOOGLE_SPREADSHEET_ID"`
	SheetName             string `env:"GOOGLE_SHEET_NAME" envDefault:"Purchases"`
	SyncBatchSize         int    `env:"SYNC_BATCH_SIZE" envDefault:"50"`

	SnapshotSchedule string `env:"SNAPSHOT_SCHEDULE" envDefault:"0 0 3 * * *"`

	ImportMaxBytes     int64 `env:"IMPORT_MAX_BYTES" envDefault:"10485760"`
	RateLimitPerMinute int   `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate collects every configuration problem instead of stopping at the
// first one, so a broken deployment reports all missing values at once.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, "PORT must not be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, "LABSTOCK_DB_PATH must not be empty")
	}
	if c.ImportMaxBytes <= 0 {
		errs = append(errs, "IMPORT_MAX_BYTES must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.SyncBatchSize <= 0 {
		errs = append(errs, "SYNC_BATCH_SIZE must be positive")
	}
	if c.SpreadsheetID != "" && strings.TrimSpace(c.SheetName) == "" {
		errs = append(errs, "GOOGLE_SHEET_NAME must not be empty when GOOGLE_SPREADSHEET_ID is set")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(errs) > 0 {
		return errors.New("invalid configuration: " + strings.Join(errs, "; "))
	}
	return nil
}

// MessagingEnabled reports whether the AMQP event pipeline is configured.
func (c *Config) MessagingEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// SheetsEnabled reports whether the Google Sheets mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.SpreadsheetID) != ""
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
