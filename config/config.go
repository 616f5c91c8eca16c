// Package config loads service settings from the environment and sets up
// the global logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"instant-win-system/utils"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port                string   `env:"PORT" envDefault:"5200"`
	StoreDriver         string   `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL         string   `env:"DATABASE_URL"`
	GatewayServiceToken string   `env:"GATEWAY_SERVICE_TOKEN"`
	AllowedOrigins      []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	MaxTxRetries   int           `env:"MAX_TX_RETRIES" envDefault:"5"`
	TxRetryBackoff time.Duration `env:"TX_RETRY_BACKOFF" envDefault:"20ms"`
	MaxBatchDraws  int           `env:"MAX_BATCH_DRAWS" envDefault:"10"`
	DrawRateLimit  float64       `env:"DRAW_RATE_LIMIT" envDefault:"2"`
	DrawRateBurst  int           `env:"DRAW_RATE_BURST" envDefault:"5"`

	PendingRequestTTL time.Duration `env:"PENDING_REQUEST_TTL" envDefault:"0s"`

	ConfigSyncURL      string        `env:"CONFIG_SYNC_URL"`
	ConfigSyncInterval time.Duration `env:"CONFIG_SYNC_INTERVAL" envDefault:"1m"`
	ConfigServiceToken string        `env:"CONFIG_SERVICE_TOKEN"`

	R2 R2Config

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
}

// Client returns the settings in the shape utils.NewR2Client expects.
func (c R2Config) Client() utils.R2Config {
	return utils.R2Config{
		AccountID:       c.AccountID,
		AccessKeyID:     c.AccessKeyID,
		AccessKeySecret: c.AccessKeySecret,
		Bucket:          c.Bucket,
	}
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse reads the environment without touching .env files.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL environment variable not set")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.GatewayServiceToken == "" {
		return errors.New("GATEWAY_SERVICE_TOKEN environment variable not set")
	}
	if c.MaxTxRetries < 1 {
		return errors.New("MAX_TX_RETRIES must be at least 1")
	}
	if c.MaxBatchDraws < 1 {
		return errors.New("MAX_BATCH_DRAWS must be at least 1")
	}
	if c.DrawRateLimit <= 0 || c.DrawRateBurst < 1 {
		return errors.New("DRAW_RATE_LIMIT and DRAW_RATE_BURST must be positive")
	}
	if c.ConfigSyncURL != "" && c.ConfigSyncInterval <= 0 {
		return errors.New("CONFIG_SYNC_INTERVAL must be positive")
	}
	return nil
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(level, format string) error {
	return setupLogger(os.Stdout, level, format)
}

func setupLogger(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	switch strings.ToLower(format) {
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	case "json", "":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", format)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
