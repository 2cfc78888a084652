// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Pipeline      PipelineConfig
	Recurring     RecurringConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
}

// DatabaseConfig configures the PostgreSQL connection
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// AuthConfig holds credentials for caller authentication
type AuthConfig struct {
	JWTSecret    string
	ImportSecret string
}

// PipelineConfig tunes the statement ingestion pipeline
type PipelineConfig struct {
	BatchSize          int
	SampleTransactions int
}

// RecurringConfig holds the recurring-payment detection thresholds.
// These are heuristics observed to catch weekly/biweekly/monthly bills
// with calendar jitter; they are tunable, not derived.
type RecurringConfig struct {
	LookbackDays    int
	MinOccurrences  int
	MinIntervalDays float64
	MaxIntervalDays float64
	MaxIntervalSD   float64
	WeeklyMaxDays   float64
}

// CacheConfig configures the dashboard response cache
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

// ObservabilityConfig toggles metrics exposure
type ObservabilityConfig struct {
	MetricsEnabled bool
}

// ProfilingConfig toggles the pprof server
type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               envString("SERVER_HOST", "0.0.0.0"),
			Port:               envInt("SERVER_PORT", 8080),
			RateLimitPerSecond: envInt("RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     envInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:     envString("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			User:     envString("DB_USER", "postgres"),
			Password: envString("DB_PASSWORD", ""),
			Name:     envString("DB_NAME", "statement_pilot"),
			SSLMode:  envString("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:    os.Getenv("JWT_SECRET"),
			ImportSecret: os.Getenv("IMPORT_SECRET"),
		},
		Pipeline: PipelineConfig{
			BatchSize:          envInt("PIPELINE_BATCH_SIZE", 500),
			SampleTransactions: envInt("PIPELINE_SAMPLE_TRANSACTIONS", 5),
		},
		Recurring: RecurringConfig{
			LookbackDays:    envInt("RECURRING_LOOKBACK_DAYS", 90),
			MinOccurrences:  envInt("RECURRING_MIN_OCCURRENCES", 3),
			MinIntervalDays: envFloat("RECURRING_MIN_INTERVAL_DAYS", 6),
			MaxIntervalDays: envFloat("RECURRING_MAX_INTERVAL_DAYS", 40),
			MaxIntervalSD:   envFloat("RECURRING_MAX_INTERVAL_SD", 15),
			WeeklyMaxDays:   envFloat("RECURRING_WEEKLY_MAX_DAYS", 10),
		},
		Cache: CacheConfig{
			Enabled: envBool("CACHE_ENABLED", true),
			TTL:     envDuration("CACHE_TTL", 5*time.Minute),
			MaxSize: envInt("CACHE_MAX_SIZE", 1024),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: envBool("METRICS_ENABLED", true),
		},
		Profiling: ProfilingConfig{
			Enabled: envBool("PPROF_ENABLED", false),
			Port:    envInt("PPROF_PORT", 6060),
		},
	}

	if cfg.Pipeline.BatchSize <= 0 {
		return nil, fmt.Errorf("PIPELINE_BATCH_SIZE must be positive, got %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Recurring.MinOccurrences < 2 {
		return nil, fmt.Errorf("RECURRING_MIN_OCCURRENCES must be at least 2, got %d", cfg.Recurring.MinOccurrences)
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
