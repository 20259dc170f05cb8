// Package common provides shared utilities for the datalake service.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the datalake service.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Ingest      IngestConfig  `toml:"ingest"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the location of the embedded database file.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations.
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
	FMP   FMPConfig   `toml:"fmp"`
}

// EODHDConfig holds EODHD API configuration.
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the per-fetch timeout duration.
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// FMPConfig holds Financial Modeling Prep API configuration.
type FMPConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the screener request timeout.
func (c *FMPConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// IngestConfig holds the knobs for the resumable ingest scheduler.
type IngestConfig struct {
	MaxAttempts        int    `toml:"max_attempts"`          // per-item retry cap
	StaleThreshold     string `toml:"stale_threshold"`       // running items older than this are reclaimed
	DefaultWindowDays  int    `toml:"default_window_days"`   // partition size when the request omits it
	MinArchiveKeepDays int    `toml:"min_archive_keep_days"` // lower bound for the archive cutoff
}

// GetMaxAttempts returns the per-item attempt cap.
func (c *IngestConfig) GetMaxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 5
	}
	return c.MaxAttempts
}

// GetStaleThreshold parses the stale-running threshold.
func (c *IngestConfig) GetStaleThreshold() time.Duration {
	d, err := time.ParseDuration(c.StaleThreshold)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// GetDefaultWindowDays returns the default partition size in days.
func (c *IngestConfig) GetDefaultWindowDays() int {
	if c.DefaultWindowDays <= 0 {
		return 365
	}
	return c.DefaultWindowDays
}

// GetMinArchiveKeepDays returns the minimum retention for the hot table.
func (c *IngestConfig) GetMinArchiveKeepDays() int {
	if c.MinArchiveKeepDays <= 0 {
		return 30
	}
	return c.MinArchiveKeepDays
}

// AuthConfig holds single-user authentication configuration.
type AuthConfig struct {
	Email        string `toml:"email"`
	PasswordHash string `toml:"password_hash"` // bcrypt hash of the single user's password
	JWTSecret    string `toml:"jwt_secret"`
	TokenExpiry  string `toml:"token_expiry"`
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/datalake.db",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "20s",
			},
			FMP: FMPConfig{
				BaseURL:   "https://financialmodelingprep.com/stable",
				RateLimit: 5,
				Timeout:   "30s",
			},
		},
		Ingest: IngestConfig{
			MaxAttempts:        5,
			StaleThreshold:     "10m",
			DefaultWindowDays:  365,
			MinArchiveKeepDays: 30,
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Missing files are skipped; later files override earlier ones.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies DATALAKE_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DATALAKE_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("DATALAKE_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("DATALAKE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("DATALAKE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("DATALAKE_DB_PATH"); path != "" {
		config.Storage.Path = path
	}

	if key := os.Getenv("EODHD_API_TOKEN"); key != "" {
		config.Clients.EODHD.APIKey = key
	}
	if key := os.Getenv("FMP_API_KEY"); key != "" {
		config.Clients.FMP.APIKey = key
	}

	if v := os.Getenv("DATALAKE_AUTH_EMAIL"); v != "" {
		config.Auth.Email = v
	}
	if v := os.Getenv("DATALAKE_AUTH_PASSWORD_HASH"); v != "" {
		config.Auth.PasswordHash = v
	}
	if v := os.Getenv("DATALAKE_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("DATALAKE_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}

	if v := os.Getenv("DATALAKE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Ingest.MaxAttempts = n
		}
	}
	if v := os.Getenv("DATALAKE_STALE_THRESHOLD"); v != "" {
		config.Ingest.StaleThreshold = v
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
