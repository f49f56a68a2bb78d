package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}
	if c.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_size must be >= 0, got %d", c.Server.MaxBodySize))
	}

	errs = append(errs, c.Orchestrator.validate()...)

	// engines.* must name known lifecycle statuses.
	types := make([]string, 0, len(c.Engines))
	for typ := range c.Engines {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		if !api.LifecycleStatus(c.Engines[typ]).Valid() {
			errs = append(errs, fmt.Errorf("engines.%s: unknown lifecycle status %q", typ, c.Engines[typ]))
		}
	}

	if c.Resolution.ActionTimeout < 0 {
		errs = append(errs, fmt.Errorf("resolution.action_timeout must be >= 0, got %s", c.Resolution.ActionTimeout))
	}

	switch c.Sinks.Type {
	case "log":
	case "webhook":
		if c.Sinks.BaseURL == "" {
			errs = append(errs, fmt.Errorf("sinks.base_url is required when sinks.type is \"webhook\""))
		}
	default:
		errs = append(errs, fmt.Errorf("sinks.type must be \"log\" or \"webhook\", got %q", c.Sinks.Type))
	}

	switch c.Idempotency.Type {
	case "memory", "none":
	case "redis":
		if c.Idempotency.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("idempotency.redis.addr is required when idempotency.type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("idempotency.type must be \"memory\", \"redis\", or \"none\", got %q", c.Idempotency.Type))
	}
	if c.Idempotency.Type != "none" && c.Idempotency.TTL <= 0 {
		errs = append(errs, fmt.Errorf("idempotency.ttl must be > 0, got %s", c.Idempotency.TTL))
	}

	switch c.Storage.Type {
	case "memory":
		if c.Storage.MaxSize < 0 {
			errs = append(errs, fmt.Errorf("storage.max_size must be >= 0, got %d", c.Storage.MaxSize))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", \"sqlite\", or \"none\", got %q", c.Storage.Type))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be > 0, got %g", c.RateLimit.RequestsPerSecond))
		}
		if c.RateLimit.Burst <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.burst must be > 0, got %d", c.RateLimit.Burst))
		}
	}

	tr := c.Observability.Tracing
	if tr.Enabled && tr.Endpoint == "" {
		errs = append(errs, fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled"))
	}
	if tr.SampleRate < 0 || tr.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing.sample_rate must be within [0, 1], got %g", tr.SampleRate))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (o OrchestratorConfig) validate() []error {
	var errs []error
	if !api.ExecutionMode(o.DefaultMode).Valid() {
		errs = append(errs, fmt.Errorf("orchestrator.default_mode must be \"sequential\", \"parallel\", or \"adaptive\", got %q", o.DefaultMode))
	}
	if o.AdaptiveCostThreshold < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.adaptive_cost_threshold must be >= 0, got %g", o.AdaptiveCostThreshold))
	}
	if o.MaxEngines < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.max_engines must be >= 0, got %d", o.MaxEngines))
	}
	if o.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.default_timeout must be >= 0, got %s", o.DefaultTimeout))
	}
	if o.MaxTimeout > 0 && o.DefaultTimeout > o.MaxTimeout {
		errs = append(errs, fmt.Errorf("orchestrator.default_timeout %s exceeds orchestrator.max_timeout %s", o.DefaultTimeout, o.MaxTimeout))
	}
	return errs
}

// ValidationLimits converts the orchestrator limits into request validation settings.
func (o OrchestratorConfig) ValidationLimits() api.ValidationConfig {
	return api.ValidationConfig{
		MaxEngines:   o.MaxEngines,
		MaxTimeoutMS: int(o.MaxTimeout.Milliseconds()),
	}
}
