package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrEnvironmentMisconfigured = errors.New("environment misconfigured")

// MisconfiguredError lists every setting that prevented startup.
type MisconfiguredError struct {
	Problems []string
}

func (e *MisconfiguredError) Error() string {
	return fmt.Sprintf("%s: %s", ErrEnvironmentMisconfigured, strings.Join(e.Problems, "; "))
}

func (e *MisconfiguredError) Is(target error) bool {
	return target == ErrEnvironmentMisconfigured
}

type Config struct {
	Account  AccountConfig
	Site     SiteConfig
	Browser  BrowserConfig
	Cycle    CycleConfig
	Pacing   PacingConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type AccountConfig struct {
	Email    string
	Password string
}

type SiteConfig struct {
	CoinPageURL string
	SearchTerms []string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	UserAgent      string
}

type CycleConfig struct {
	MaxAttempts    int
	ElementTimeout time.Duration
	VerifyTimeout  time.Duration
	Highlight      bool
	Manual         bool
}

type PacingConfig struct {
	Enabled      bool
	RetryDelay   time.Duration
	RetryJitter  time.Duration
	SettleMin    time.Duration
	SettleMax    time.Duration
	TypingTypos  float64
	TypingThinks float64
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads .env files (when present) and then the process environment.
// Environment variables already set win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Account: AccountConfig{
			Email:    os.Getenv("ALIEXPRESS_EMAIL"),
			Password: os.Getenv("ALIEXPRESS_PASSWORD"),
		},
		Site: SiteConfig{
			CoinPageURL: getEnvOrDefault("COIN_PAGE_URL", "https://s.click.aliexpress.com/e/_DB2kEjh"),
			SearchTerms: getStringSliceOrDefault("COUNTRY_SEARCH_TERMS", []string{"Korea", "대한민국"}),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", false),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Seoul"),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
		},
		Cycle: CycleConfig{
			MaxAttempts:    getIntOrDefault("COLLECT_MAX_ATTEMPTS", 3),
			ElementTimeout: getDurationOrDefault("COLLECT_ELEMENT_TIMEOUT", 15*time.Second),
			VerifyTimeout:  getDurationOrDefault("COLLECT_VERIFY_TIMEOUT", 10*time.Second),
			Highlight:      getBoolOrDefault("COLLECT_HIGHLIGHT", true),
			Manual:         getBoolOrDefault("COLLECT_MANUAL", false),
		},
		Pacing: PacingConfig{
			Enabled:      getBoolOrDefault("PACING_ENABLED", true),
			RetryDelay:   getDurationOrDefault("PACING_RETRY_DELAY", 5*time.Second),
			RetryJitter:  getDurationOrDefault("PACING_RETRY_JITTER", 2*time.Second),
			SettleMin:    getDurationOrDefault("PACING_SETTLE_MIN", 5*time.Second),
			SettleMax:    getDurationOrDefault("PACING_SETTLE_MAX", 7*time.Second),
			TypingTypos:  getFloatOrDefault("PACING_TYPO_RATE", 0.01),
			TypingThinks: getFloatOrDefault("PACING_THINK_RATE", 0.05),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8085),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			MaxConns: int32(getIntOrDefault("DATABASE_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:coin_collection"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

// Validate reports every problem at once as a *MisconfiguredError.
func (c *Config) Validate() error {
	var problems []string

	if c.Account.Email == "" {
		problems = append(problems, "ALIEXPRESS_EMAIL is required")
	}
	if c.Account.Password == "" {
		problems = append(problems, "ALIEXPRESS_PASSWORD is required")
	}
	if c.Site.CoinPageURL == "" {
		problems = append(problems, "COIN_PAGE_URL must not be empty")
	}
	if len(c.Site.SearchTerms) == 0 {
		problems = append(problems, "COUNTRY_SEARCH_TERMS must list at least one term")
	}
	if c.Cycle.MaxAttempts < 1 {
		problems = append(problems, "COLLECT_MAX_ATTEMPTS must be at least 1")
	}
	if c.Cycle.ElementTimeout <= 0 {
		problems = append(problems, "COLLECT_ELEMENT_TIMEOUT must be positive")
	}
	if c.Pacing.SettleMin > c.Pacing.SettleMax {
		problems = append(problems, "PACING_SETTLE_MIN cannot be greater than PACING_SETTLE_MAX")
	}
	if c.Pacing.TypingTypos < 0 || c.Pacing.TypingTypos > 1 {
		problems = append(problems, "PACING_TYPO_RATE must be between 0 and 1")
	}
	if c.Pacing.TypingThinks < 0 || c.Pacing.TypingThinks > 1 {
		problems = append(problems, "PACING_THINK_RATE must be between 0 and 1")
	}

	if len(problems) > 0 {
		return &MisconfiguredError{Problems: problems}
	}
	return nil
}

// ValidateServer additionally checks the HTTP service settings.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &MisconfiguredError{Problems: []string{fmt.Sprintf("invalid server port: %d", c.Server.Port)}}
	}
	return nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
