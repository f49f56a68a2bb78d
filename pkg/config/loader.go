package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, STEER_CONFIG env, ./config.yaml, /etc/steer/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. STEER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/steer/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("STEER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/steer/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps STEER_* environment variables to config fields.
// Malformed numeric values are ignored and keep the previous value; a
// malformed STEER_ENGINE_STATUS is reported since it changes which engines
// may run.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("STEER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STEER_DEFAULT_MODE"); v != "" {
		cfg.Orchestrator.DefaultMode = v
	}
	if v := os.Getenv("STEER_KNOWLEDGE_BASE"); v != "" {
		cfg.Resolution.KnowledgeBase = v
	}
	if v := os.Getenv("STEER_SINKS"); v != "" {
		cfg.Sinks.Type = v
	}
	if v := os.Getenv("STEER_SINKS_URL"); v != "" {
		cfg.Sinks.BaseURL = v
	}
	if v := os.Getenv("STEER_SINKS_TOKEN"); v != "" {
		cfg.Sinks.AuthToken = v
	}
	if v := os.Getenv("STEER_IDEMPOTENCY"); v != "" {
		cfg.Idempotency.Type = v
	}
	if v := os.Getenv("STEER_REDIS_ADDR"); v != "" {
		cfg.Idempotency.Redis.Addr = v
	}
	if v := os.Getenv("STEER_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STEER_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("STEER_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("STEER_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Path = v
	}
	if v := os.Getenv("STEER_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
		cfg.Observability.Tracing.Enabled = true
	}
	if v := os.Getenv("STEER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// STEER_ENGINE_STATUS: JSON object of engine type to lifecycle status.
	if v := os.Getenv("STEER_ENGINE_STATUS"); v != "" {
		statuses, err := parseEngineStatusJSON(v)
		if err != nil {
			return err
		}
		if cfg.Engines == nil {
			cfg.Engines = make(map[string]string, len(statuses))
		}
		for typ, status := range statuses {
			cfg.Engines[typ] = status
		}
	}

	return nil
}

// parseEngineStatusJSON parses a JSON object of engine lifecycle overrides.
func parseEngineStatusJSON(jsonStr string) (map[string]string, error) {
	var statuses map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &statuses); err != nil {
		return nil, fmt.Errorf("parsing STEER_ENGINE_STATUS JSON: %w", err)
	}
	return statuses, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// storage.postgres.dsn_file -> storage.postgres.dsn
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	// idempotency.redis.password_file -> idempotency.redis.password
	if cfg.Idempotency.Redis.PasswordFile != "" && cfg.Idempotency.Redis.Password == "" {
		val, err := readSecretFile(cfg.Idempotency.Redis.PasswordFile)
		if err != nil {
			return fmt.Errorf("idempotency.redis.password_file: %w", err)
		}
		cfg.Idempotency.Redis.Password = val
	}

	// sinks.auth_token_file -> sinks.auth_token
	if cfg.Sinks.AuthTokenFile != "" && cfg.Sinks.AuthToken == "" {
		val, err := readSecretFile(cfg.Sinks.AuthTokenFile)
		if err != nil {
			return fmt.Errorf("sinks.auth_token_file: %w", err)
		}
		cfg.Sinks.AuthToken = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
