package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Renewal   RenewalConfig
	Gateway   GatewayConfig
	Registrar RegistrarConfig
	Auth      AuthConfig
	Sentry    SentryConfig
}

// ServerConfig holds the ops API server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MinConnections int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	HealthCheck    time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PoolSize int
}

// RenewalConfig holds the renewal engine tunables
type RenewalConfig struct {
	LookaheadDays int
	ScanLimit     int
	MaxRetries    int
	BaseBackoff   time.Duration
	Workers       int
}

// GatewayConfig holds payment gateway client configuration
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RegistrarConfig holds registrar client configuration
type RegistrarConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AuthConfig holds ops API authentication configuration
type AuthConfig struct {
	JWTSecret string
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// .env file is optional for production (env vars are used)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", 10*time.Second)
	viper.SetDefault("server_write_timeout", 10*time.Second)
	viper.SetDefault("server_shutdown_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database_max_connections", 25)
	viper.SetDefault("database_min_connections", 5)
	viper.SetDefault("database_max_lifetime", 1*time.Hour)
	viper.SetDefault("database_max_idle_time", 30*time.Minute)
	viper.SetDefault("database_health_check", 30*time.Second)

	// Redis defaults
	viper.SetDefault("redis_pool_size", 10)

	// Renewal defaults
	viper.SetDefault("renewal_lookahead_days", 30)
	viper.SetDefault("renewal_scan_limit", 500)
	viper.SetDefault("renewal_max_retries", 3)
	viper.SetDefault("renewal_base_backoff", 2*time.Second)
	viper.SetDefault("renewal_workers", 8)

	// External call defaults
	viper.SetDefault("gateway_timeout", 30*time.Second)
	viper.SetDefault("registrar_timeout", 30*time.Second)
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Renewal.LookaheadDays <= 0 {
		return fmt.Errorf("RENEWAL_LOOKAHEAD_DAYS must be positive")
	}
	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if cfg.Registrar.BaseURL == "" {
		return fmt.Errorf("REGISTRAR_BASE_URL is required")
	}
	if cfg.Auth.JWTSecret != "" && len(cfg.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters")
	}
	return nil
}

// Lookahead returns the eligibility window as a duration
func (c RenewalConfig) Lookahead() time.Duration {
	return time.Duration(c.LookaheadDays) * 24 * time.Hour
}
