// Package config provides unified configuration for the steer orchestration
// service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (STEER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the steer service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Engines       map[string]string   `yaml:"engines"` // engine type -> lifecycle status override
	Resolution    ResolutionConfig    `yaml:"resolution"`
	Sinks         SinksConfig         `yaml:"sinks"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Storage       StorageConfig       `yaml:"storage"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int   `yaml:"port"`             // default: 8080
	MaxBodySize     int64 `yaml:"max_body_size"`    // default: 1 MiB
	ShutdownTimeout int   `yaml:"shutdown_timeout"` // seconds, default: 10
}

// OrchestratorConfig holds execution planning settings.
type OrchestratorConfig struct {
	DefaultMode           string        `yaml:"default_mode"`            // "sequential", "parallel" or "adaptive", default: "adaptive"
	DefaultTimeout        time.Duration `yaml:"default_timeout"`         // applied when a request sets none, default: 30s
	AdaptiveCostThreshold float64       `yaml:"adaptive_cost_threshold"` // default: 2.0
	MaxEngines            int           `yaml:"max_engines"`             // default: 16
	MaxTimeout            time.Duration `yaml:"max_timeout"`             // default: 5m
	PersistTimeout        time.Duration `yaml:"persist_timeout"`         // default: 5s
}

// ResolutionConfig holds automated resolution settings.
type ResolutionConfig struct {
	KnowledgeBase   string        `yaml:"knowledge_base"`   // YAML or JSON file, empty uses the built-in knowledge
	Watch           bool          `yaml:"watch"`            // reload knowledge_base on change
	ActionTimeout   time.Duration `yaml:"action_timeout"`   // default: 5s
	EscalationQueue string        `yaml:"escalation_queue"` // default: "driver-conduct"
}

// SinksConfig selects where resolution actions are delivered.
type SinksConfig struct {
	Type          string        `yaml:"type"`            // "log" or "webhook", default: "log"
	BaseURL       string        `yaml:"base_url"`
	AuthToken     string        `yaml:"auth_token"`
	AuthTokenFile string        `yaml:"auth_token_file"` // _file variant for auth_token
	Timeout       time.Duration `yaml:"timeout"`         // default: 10s
	RateLimit     float64       `yaml:"rate_limit"`      // requests per second, 0 disables
	Burst         int           `yaml:"burst"`
}

// IdempotencyConfig selects the deduplication store for refunds and escalations.
type IdempotencyConfig struct {
	Type  string        `yaml:"type"` // "memory", "redis" or "none", default: "memory"
	TTL   time.Duration `yaml:"ttl"`  // default: 24h
	Redis RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
	Prefix       string `yaml:"prefix"`        // default: "steer:idem:"
}

// StorageConfig holds execution record persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres", "sqlite" or "none", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "steer.db"
}

// RateLimitConfig holds inbound request limiting settings.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 50
	Burst             int     `yaml:"burst"`               // default: 100
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// TracingConfig holds OTLP trace export settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`  // default: 1.0
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"` // default: "steer"
	Environment string  `yaml:"environment"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "trace", "debug", "info", "warn" or "error", default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxBodySize:     1 << 20,
			ShutdownTimeout: 10,
		},
		Orchestrator: OrchestratorConfig{
			DefaultMode:           "adaptive",
			DefaultTimeout:        30 * time.Second,
			AdaptiveCostThreshold: 2.0,
			MaxEngines:            16,
			MaxTimeout:            5 * time.Minute,
			PersistTimeout:        5 * time.Second,
		},
		Resolution: ResolutionConfig{
			ActionTimeout:   5 * time.Second,
			EscalationQueue: "driver-conduct",
		},
		Sinks: SinksConfig{
			Type:    "log",
			Timeout: 10 * time.Second,
		},
		Idempotency: IdempotencyConfig{
			Type: "memory",
			TTL:  24 * time.Hour,
			Redis: RedisConfig{
				Prefix: "steer:idem:",
			},
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
			SQLite: SQLiteConfig{
				Path: "steer.db",
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
			},
			Tracing: TracingConfig{
				SampleRate:  1.0,
				ServiceName: "steer",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
