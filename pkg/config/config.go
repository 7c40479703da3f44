package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	Environment string `koanf:"environment"`
	Hostname    string `koanf:"-"`

	ServerHost string `koanf:"server_host"`
	ServerPort int    `koanf:"server_port"`
	BaseURL    string `koanf:"base_url"`

	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`

	JWTSecret       string        `koanf:"jwt_secret"`
	TokenExpiry     time.Duration `koanf:"token_expiry"`
	BcryptCost      int           `koanf:"bcrypt_cost"`
	BcryptResetCost int           `koanf:"bcrypt_reset_cost"`

	OverdueFeePerDay float64 `koanf:"overdue_fee_per_day"`

	ResetTokenTTL        time.Duration `koanf:"reset_token_ttl"`
	ResetRateLimit       int           `koanf:"reset_rate_limit"`
	ResetRateLimitWindow time.Duration `koanf:"reset_rate_limit_window"`

	CleanupInterval      time.Duration `koanf:"cleanup_interval"`
	OverdueSweepInterval time.Duration `koanf:"overdue_sweep_interval"`

	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`
}

const (
	configFileENV = "CONFIG_FILE"
	envPrefix     = "TOME_"
)

// New loads the configuration: built-in defaults, then an optional YAML file
// (CONFIG_FILE, default ./tome.yaml), then TOME_* environment variables.
func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		Environment: "development",
		Hostname:    hostname,

		ServerHost: "127.0.0.1",
		ServerPort: 4180,
		BaseURL:    "http://localhost:4180",

		DatabaseFilePath:          "./tmp/data.sqlite",
		DatabaseMaxRetries:        5,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseBusyTimeout:       5 * time.Second,

		TokenExpiry:     7 * 24 * time.Hour,
		BcryptCost:      12,
		BcryptResetCost: 14,

		OverdueFeePerDay: 1.0,

		ResetTokenTTL:        time.Hour,
		ResetRateLimit:       3,
		ResetRateLimitWindow: time.Hour,

		CleanupInterval:      15 * time.Minute,
		OverdueSweepInterval: time.Hour,

		SMTPPort: 587,
		SMTPFrom: "noreply@localhost",
	}

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = "./tome.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	err = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if cfg.Environment == "development" || cfg.Environment == "test" {
		cfg.DatabaseDebug = true
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = "development-secret-do-not-use-in-production"
		}
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt_secret is required outside development")
	}

	return cfg, nil
}

// IsProduction reports whether the server is running in production mode.
// Non-production mode enables the password-reset token fallback in responses.
func (cfg *Config) IsProduction() bool {
	return cfg.Environment == "production"
}
