package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Storage backends for the alert store.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	StorageBackend string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	CoinGeckoBaseURL    string
	CoinGeckoAPIKey     string
	PollIntervalSeconds int
	PollRetries         int
	CoinGeckoPerMinute  int

	NotificationsEnabled bool
	InboxCapacity        int
	SlackWebhookURL      string
	RedisNotifyChannel   string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")

	fs.StringVar(&c.StorageBackend, "storage", StorageMemory, "alert store backend: memory, postgres or redis")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (required for -storage=postgres)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis host:port (required for -storage=redis or -redis-notify-channel)")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis logical database (0..15)")

	fs.StringVar(&c.CoinGeckoBaseURL, "coingecko-base-url", "https://api.coingecko.com/api/v3", "CoinGecko API root")
	fs.StringVar(&c.CoinGeckoAPIKey, "coingecko-api-key", "", "CoinGecko demo API key (optional)")
	fs.IntVar(&c.PollIntervalSeconds, "poll-interval-seconds", 60, "seconds between price polls (0 disables polling, else 5..3600)")
	fs.IntVar(&c.PollRetries, "poll-retries", 2, "retries per price poll (0..10)")
	fs.IntVar(&c.CoinGeckoPerMinute, "coingecko-per-minute", 30, "CoinGecko requests per minute shared across replicas via redis (0 disables)")

	fs.BoolVar(&c.NotificationsEnabled, "notifications-enabled", true, "deliver notifications to the local inbox")
	fs.IntVar(&c.InboxCapacity, "inbox-capacity", 100, "notifications kept in the local inbox (1..10000)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications")
	fs.StringVar(&c.RedisNotifyChannel, "redis-notify-channel", "", "Redis pub/sub channel for notifications (empty disables)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Storage backend and its connection settings
	switch c.StorageBackend {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for STORAGE=postgres"))
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for STORAGE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE %q (must be memory, postgres or redis)", c.StorageBackend))
	}
	if c.RedisDB < 0 || c.RedisDB > 15 {
		errs = append(errs, fmt.Errorf("invalid REDIS_DB %d (must be 0..15)", c.RedisDB))
	}

	// Price polling
	if c.PollIntervalSeconds != 0 && (c.PollIntervalSeconds < 5 || c.PollIntervalSeconds > 3600) {
		errs = append(errs, fmt.Errorf("invalid POLL_INTERVAL_SECONDS %d (must be 0 or 5..3600)", c.PollIntervalSeconds))
	}
	if c.PollRetries < 0 || c.PollRetries > 10 {
		errs = append(errs, fmt.Errorf("invalid POLL_RETRIES %d (must be 0..10)", c.PollRetries))
	}
	if c.CoinGeckoPerMinute < 0 {
		errs = append(errs, fmt.Errorf("invalid COINGECKO_PER_MINUTE %d (must be >= 0)", c.CoinGeckoPerMinute))
	}
	if c.PollIntervalSeconds != 0 && c.CoinGeckoBaseURL == "" {
		errs = append(errs, errors.New("COINGECKO_BASE_URL is required when polling is enabled"))
	}

	// Notifications
	if c.InboxCapacity <= 0 || c.InboxCapacity > 10000 {
		errs = append(errs, fmt.Errorf("invalid INBOX_CAPACITY %d (must be 1..10000)", c.InboxCapacity))
	}
	if c.RedisNotifyChannel != "" && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for REDIS_NOTIFY_CHANNEL"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// UsesRedis reports whether a Redis client should be opened. Storage,
// pub/sub notifications and the shared CoinGecko budget all use it.
func (c *Config) UsesRedis() bool {
	return c.RedisAddr != ""
}
