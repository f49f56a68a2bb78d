package api

import (
	"fmt"
	"slices"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxEngines   int
	MaxTimeoutMS int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxEngines:   16,
		MaxTimeoutMS: 5 * 60 * 1000,
	}
}

// ValidateOrchestrateRequest checks the structure of an OrchestrateRequest.
// It returns an *APIError describing the first validation failure, or nil.
// Whether the named engines exist is checked by the orchestrator.
func ValidateOrchestrateRequest(req *OrchestrateRequest, cfg ValidationConfig) *APIError {
	if len(req.Engines) == 0 {
		return NewInvalidRequestError("engines", "engines must contain at least one engine type")
	}

	if cfg.MaxEngines > 0 && len(req.Engines) > cfg.MaxEngines {
		return NewInvalidRequestError("engines",
			fmt.Sprintf("engines exceeds maximum of %d", cfg.MaxEngines))
	}

	seen := make(map[EngineType]bool, len(req.Engines))
	for _, e := range req.Engines {
		if e == "" {
			return NewInvalidRequestError("engines", "engine type must not be empty")
		}
		if seen[e] {
			return NewInvalidRequestError("engines",
				fmt.Sprintf("engine %q is listed more than once", e))
		}
		seen[e] = true
	}

	if req.ExecutionMode != "" && !req.ExecutionMode.Valid() {
		return NewInvalidRequestError("executionMode",
			fmt.Sprintf("executionMode must be one of %v", modeNames))
	}

	if !req.Priority.Valid() {
		return NewInvalidRequestError("priority",
			fmt.Sprintf("invalid priority %q", req.Priority))
	}

	if req.InputData == nil {
		return NewInvalidRequestError("inputData", "inputData is required")
	}

	if !req.CulturalContext.Situation.Valid() {
		return NewInvalidRequestError("culturalContext.situation",
			fmt.Sprintf("unknown situation %q", req.CulturalContext.Situation))
	}

	if req.Timeout != nil {
		if *req.Timeout < 0 {
			return NewInvalidRequestError("timeout", "timeout must not be negative")
		}
		if cfg.MaxTimeoutMS > 0 && *req.Timeout > cfg.MaxTimeoutMS {
			return NewInvalidRequestError("timeout",
				fmt.Sprintf("timeout exceeds maximum of %d ms", cfg.MaxTimeoutMS))
		}
	}

	return nil
}

var modeNames = []ExecutionMode{ModeSequential, ModeParallel, ModeAdaptive}

// SortedEngineTypes returns a sorted copy of the given engine types.
func SortedEngineTypes(types []EngineType) []EngineType {
	out := slices.Clone(types)
	slices.Sort(out)
	return out
}
