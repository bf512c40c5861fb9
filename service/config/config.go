package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	AllowedOrigins []string // CORS origins; empty allows all

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Helius configuration
	HeliusAPIKey string
	HeliusRPCURL string // optional, defaults to the mainnet endpoint with the key
	HeliusAPIURL string

	// Birdeye configuration
	BirdeyeAPIKey string
	BirdeyeAPIURL string

	// Jupiter configuration
	JupiterAPIURL string
	QuoteMaxAge   time.Duration // 0 disables the staleness check

	// Launchpad and analysis providers
	PumpfunAPIURL     string
	PumpportalAPIURL  string
	PumpportalWSURL   string
	RugcheckAPIURL    string
	DexscreenerAPIURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Polling configuration
	DefaultPollInterval time.Duration
	MinPollInterval     time.Duration

	// Upstream HTTP behavior
	HTTPTimeout    time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Every problem found is reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs *multierror.Error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		errs = multierror.Append(errs, err)
	}

	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Provider credentials
	cfg.HeliusAPIKey = os.Getenv("HELIUS_API_KEY")
	if cfg.HeliusAPIKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("HELIUS_API_KEY is required"))
	}
	cfg.HeliusRPCURL = os.Getenv("HELIUS_RPC_URL")
	cfg.HeliusAPIURL = getEnvOrDefault("HELIUS_API_URL", "https://api.helius.xyz")

	cfg.BirdeyeAPIKey = os.Getenv("BIRDEYE_API_KEY")
	if cfg.BirdeyeAPIKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("BIRDEYE_API_KEY is required"))
	}
	cfg.BirdeyeAPIURL = getEnvOrDefault("BIRDEYE_API_URL", "https://public-api.birdeye.so")

	cfg.JupiterAPIURL = getEnvOrDefault("JUPITER_API_URL", "https://quote-api.jup.ag/v6")
	cfg.PumpfunAPIURL = getEnvOrDefault("PUMPFUN_API_URL", "https://pump.fun/api")
	cfg.PumpportalAPIURL = getEnvOrDefault("PUMPPORTAL_API_URL", "https://pumpportal.fun/api")
	cfg.PumpportalWSURL = getEnvOrDefault("PUMPPORTAL_WS_URL", "wss://pumpportal.fun/api/data")
	cfg.RugcheckAPIURL = getEnvOrDefault("RUGCHECK_API_URL", "https://api.rugcheck.xyz")
	cfg.DexscreenerAPIURL = getEnvOrDefault("DEXSCREENER_API_URL", "https://api.dexscreener.com")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "caesarbot-wallet-snapshots")

	durations := []struct {
		key, def string
		dst      *time.Duration
	}{
		{"QUOTE_MAX_AGE", "0s", &cfg.QuoteMaxAge},
		{"DEFAULT_POLL_INTERVAL", "5m", &cfg.DefaultPollInterval},
		{"MIN_POLL_INTERVAL", "30s", &cfg.MinPollInterval},
		{"HTTP_TIMEOUT", "30s", &cfg.HTTPTimeout},
		{"RETRY_BASE_DELAY", "1s", &cfg.RetryBaseDelay},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		*d.dst = v
	}

	attempts, err := parseInt("RETRY_ATTEMPTS", 3)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.RetryAttempts = attempts

	if err := cfg.validateRanges(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.DatabaseURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("DatabaseURL is required"))
	}
	if c.HeliusAPIKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("HeliusAPIKey is required"))
	}
	if c.BirdeyeAPIKey == "" {
		errs = multierror.Append(errs, fmt.Errorf("BirdeyeAPIKey is required"))
	}
	if c.TemporalHost == "" {
		errs = multierror.Append(errs, fmt.Errorf("TemporalHost is required"))
	}
	if c.TemporalNamespace == "" {
		errs = multierror.Append(errs, fmt.Errorf("TemporalNamespace is required"))
	}
	if c.TemporalTaskQueue == "" {
		errs = multierror.Append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}
	if err := c.validateRanges(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// validateRanges checks the relationships between numeric settings.
func (c *Config) validateRanges() error {
	var errs *multierror.Error

	if c.MinPollInterval > c.DefaultPollInterval {
		errs = multierror.Append(errs, fmt.Errorf("MIN_POLL_INTERVAL (%v) cannot be greater than DEFAULT_POLL_INTERVAL (%v)",
			c.MinPollInterval, c.DefaultPollInterval))
	}
	if c.DefaultPollInterval < time.Second {
		errs = multierror.Append(errs, fmt.Errorf("DEFAULT_POLL_INTERVAL must be at least 1 second"))
	}
	if c.RetryAttempts < 1 {
		errs = multierror.Append(errs, fmt.Errorf("RETRY_ATTEMPTS must be at least 1"))
	}
	if c.QuoteMaxAge < 0 {
		errs = multierror.Append(errs, fmt.Errorf("QUOTE_MAX_AGE cannot be negative"))
	}
	if c.HTTPTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("HTTP_TIMEOUT must be positive"))
	}

	return errs.ErrorOrNil()
}

// ParseLogLevel maps LOG_LEVEL values onto slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: unknown level %q", level)
	}
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
