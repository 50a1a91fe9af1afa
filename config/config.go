package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds the commute matrix configuration. It is built once at
// startup and passed to each component.
type Config struct {
	SerpAPIKey string `env:"SERPAPI_KEY"`
	SearchURL  string `env:"SERPAPI_URL"`
	Currency   string `env:"FLIGHT_CURRENCY"`
	Locale     string `env:"FLIGHT_LOCALE"`
	UserAgent  string `env:"USER_AGENT"`

	PushoverToken string `env:"PUSHOVER_API_TOKEN"`
	PushoverUser  string `env:"PUSHOVER_USER_KEY"`
	PushoverURL   string `env:"PUSHOVER_URL"`

	EmailSender    string `env:"EMAIL_SENDER"`
	EmailPassword  string `env:"EMAIL_APP_PASSWORD"`
	EmailRecipient string `env:"EMAIL_RECEIVER"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT"`

	WorkAirport        string `env:"WORK_AIRPORT"`
	MonthsToScan       int    `env:"MONTHS_TO_SCAN"`
	GoodPriceThreshold int    `env:"GOOD_PRICE_THRESHOLD"`
	Timezone           string `env:"TIMEZONE"`
	MatrixFile         string `env:"MATRIX_FILE"`

	LogFile     string `env:"CSV_FILE"`
	LogFormat   string `env:"LOG_FORMAT"` // csv, json, or dual
	PostgresDSN string `env:"POSTGRES_DSN"`
	CalendarDir string `env:"CALENDAR_DIR"`

	Timeout           time.Duration `env:"REQUEST_TIMEOUT"`
	MaxRetries        int           `env:"MAX_RETRIES"`
	RetryBackoff      time.Duration `env:"RETRY_BACKOFF"`
	RetryBackoffMax   time.Duration `env:"RETRY_BACKOFF_MAX"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND"`
	CacheSize         int           `env:"CACHE_SIZE"`

	MetricsAddr string `env:"METRICS_ADDR"`
	DryRun      bool   `env:"DRY_RUN"`
	Verbose     bool   `env:"VERBOSE"`

	Matrix Matrix `env:"-"`
}

// DefaultConfig returns the values the matrix has always been run with.
func DefaultConfig() *Config {
	return &Config{
		SearchURL:          "https://serpapi.com/search.json",
		Currency:           "AUD",
		Locale:             "en",
		UserAgent:          "commute-matrix/1.0 (+https://serpapi.com)",
		PushoverURL:        "https://api.pushover.net/1/messages.json",
		SMTPHost:           "smtp.gmail.com",
		SMTPPort:           587,
		WorkAirport:        "SYD",
		MonthsToScan:       3,
		GoodPriceThreshold: 380,
		Timezone:           "Australia/Sydney",
		LogFile:            "commute_matrix_data.csv",
		LogFormat:          "csv",
		CalendarDir:        ".",
		Timeout:            30 * time.Second,
		MaxRetries:         1,
		RetryBackoff:       500 * time.Millisecond,
		RetryBackoffMax:    5 * time.Second,
		RequestsPerSecond:  0,
		CacheSize:          256,
		Matrix:             DefaultMatrix(),
	}
}

// Load builds a Config from defaults, an optional dotenv file and the
// process environment. A missing dotenv file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %q: %w", envFile, err)
		}
	}

	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.WorkAirport = strings.ToUpper(strings.TrimSpace(cfg.WorkAirport))
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if cfg.MatrixFile != "" {
		m, err := LoadMatrix(cfg.MatrixFile)
		if err != nil {
			return nil, err
		}
		cfg.Matrix = m
	}
	return cfg, nil
}

// Location resolves the configured timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// EmailEnabled reports whether enough SMTP settings exist to send mail.
func (c *Config) EmailEnabled() bool {
	return c.EmailSender != "" && c.EmailPassword != "" && c.EmailRecipient != ""
}

// PushEnabled reports whether Pushover credentials are configured.
func (c *Config) PushEnabled() bool {
	return c.PushoverToken != "" && c.PushoverUser != ""
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("search URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.SearchURL)
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("search URL must include a host")
	}
	if !c.DryRun && c.SerpAPIKey == "" {
		return fmt.Errorf("serpapi key cannot be empty")
	}
	if c.Currency == "" {
		return fmt.Errorf("currency cannot be empty")
	}

	if len(c.WorkAirport) != 3 {
		return fmt.Errorf("work airport must be a 3-letter IATA code, got %q", c.WorkAirport)
	}
	if c.MonthsToScan <= 0 {
		return fmt.Errorf("months to scan must be positive")
	}
	if c.GoodPriceThreshold <= 0 {
		return fmt.Errorf("good price threshold must be positive")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}

	if c.LogFile == "" {
		return fmt.Errorf("log file cannot be empty")
	}
	if c.LogFormat != "csv" && c.LogFormat != "json" && c.LogFormat != "dual" {
		return fmt.Errorf("log format must be csv, json, or dual")
	}
	if c.CalendarDir == "" {
		return fmt.Errorf("calendar dir cannot be empty")
	}

	if !c.DryRun && c.EmailEnabled() {
		if c.SMTPHost == "" {
			return fmt.Errorf("smtp host cannot be empty")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("smtp port out of range: %d", c.SMTPPort)
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if err := c.Matrix.Validate(); err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	return nil
}

// EnvString reads a non-empty environment variable.
func EnvString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", false
	}
	return value, true
}
