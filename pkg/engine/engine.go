package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// ExecutionContext carries the orchestration-level parameters an engine may
// consult while executing.
type ExecutionContext struct {
	ExecutionID string
	Priority    api.Priority
	Cultural    api.CulturalContext
}

// Engine is the capability engine contract.
type Engine interface {
	// Descriptor returns the engine's static metadata.
	Descriptor() api.EngineDescriptor

	// Execute runs the engine against input and returns a terminal record.
	// It must not panic and must honor ctx cancellation inside any blocking
	// work it performs.
	Execute(ctx context.Context, input map[string]any, ectx ExecutionContext) *api.ExecutionRecord

	// Validate is a cheap synchronous pre-flight check of the input.
	Validate(input map[string]any) bool

	// InputSchema returns the JSON Schema the engine validates input against.
	InputSchema() string
}

// OrchestratorRef is the view of the orchestrator an engine is bound to.
type OrchestratorRef interface {
	Descriptor(typ api.EngineType) (api.EngineDescriptor, bool)
	EngineTypes() []api.EngineType
}

// Recover converts a panic inside Execute into a failed record. It must be
// deferred directly:
//
//	defer engine.Recover(rec)
func Recover(rec *api.ExecutionRecord) {
	r := recover()
	if r == nil {
		return
	}
	slog.Error("engine panicked",
		"engine", rec.EngineID,
		"session_id", rec.SessionID,
		"panic", r,
	)
	if !rec.Status.IsTerminal() {
		rec.Fail(api.CodeInternalError, fmt.Sprintf("engine %s panicked: %v", rec.EngineID, r), true)
	}
}
