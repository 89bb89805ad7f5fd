package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port  string `env:"PORT,default=8080"`
	Store string `env:"LEDGER_STORE,default=postgres"`

	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=5m"`

	RedisURL       string        `env:"REDIS_URL"`
	ReplayCacheTTL time.Duration `env:"REPLAY_CACHE_TTL,default=24h"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE,default=ledger_events"`

	WebhookTimeout     time.Duration `env:"WEBHOOK_TIMEOUT,default=5s"`
	WebhookWorkers     int           `env:"WEBHOOK_WORKERS,default=8"`
	WebhookQueueSize   int           `env:"WEBHOOK_QUEUE_SIZE,default=1024"`
	WebhookMaxParallel int           `env:"WEBHOOK_MAX_PARALLEL,default=4"`

	AdminToken string `env:"ADMIN_TOKEN"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// Load reads an optional .env file, then the process environment. Variables
// already set in the environment win over the file.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the process cannot run with.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when LEDGER_STORE=postgres")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown LEDGER_STORE %q", c.Store)
	}
	if c.WebhookWorkers < 1 {
		return errors.New("WEBHOOK_WORKERS must be at least 1")
	}
	if c.WebhookQueueSize < 1 {
		return errors.New("WEBHOOK_QUEUE_SIZE must be at least 1")
	}
	if c.WebhookMaxParallel < 1 {
		return errors.New("WEBHOOK_MAX_PARALLEL must be at least 1")
	}
	if c.WebhookTimeout <= 0 {
		return errors.New("WEBHOOK_TIMEOUT must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// NewLogger builds the process logger. LOG_FORMAT=console gives
// human-readable output, anything else JSON.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "ledger-api").Logger()
}
