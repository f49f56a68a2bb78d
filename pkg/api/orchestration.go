package api

import "time"

// ExecutionMode selects how the orchestrator dispatches engines.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
	ModeAdaptive   ExecutionMode = "adaptive"
)

// Valid reports whether m is a known mode.
func (m ExecutionMode) Valid() bool {
	return m == ModeSequential || m == ModeParallel || m == ModeAdaptive
}

// Priority is the caller's urgency for an orchestration.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a known priority. Empty means normal.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// OverallStatus summarizes an orchestration across its engines.
type OverallStatus string

const (
	StatusSuccess OverallStatus = "success"
	StatusPartial OverallStatus = "partial"
	StatusFailed  OverallStatus = "failed"
	StatusRunning OverallStatus = "running"
)

// Keys used in OrchestrationResponse.Errors that are not engine IDs.
const (
	ErrorKeyValidation = "validation"
	ErrorKeySystem     = "system"
)

// OrchestrateRequest asks the orchestrator to run a set of engines against
// shared input.
type OrchestrateRequest struct {
	Engines         []EngineType    `json:"engines"`
	Priority        Priority        `json:"priority,omitempty"`
	CulturalContext CulturalContext `json:"culturalContext"`
	InputData       map[string]any  `json:"inputData"`
	ExecutionMode   ExecutionMode   `json:"executionMode,omitempty"`

	// Timeout is the caller deadline in milliseconds. Zero or absent means
	// the server default applies.
	Timeout *int `json:"timeout,omitempty"`
}

// EnginePerformance is the per-engine entry of the performance map.
type EnginePerformance struct {
	Success         bool            `json:"success"`
	Status          ExecutionStatus `json:"status"`
	SessionID       string          `json:"sessionId,omitempty"`
	DurationMS      float64         `json:"durationMs"`
	ContextScore    float64         `json:"contextScore"`
	CacheHits       int             `json:"cacheHits"`
	CacheMisses     int             `json:"cacheMisses"`
	ActionsExecuted int             `json:"actionsExecuted"`
}

// OrchestrationResponse is the aggregated result of one orchestration.
type OrchestrationResponse struct {
	ExecutionID     string                           `json:"executionId"`
	Status          OverallStatus                    `json:"status"`
	ExecutionMode   ExecutionMode                    `json:"executionMode,omitempty"`
	Results         map[EngineType]any               `json:"results"`
	Performance     map[EngineType]EnginePerformance `json:"performance"`
	AlignmentScore  float64                          `json:"culturalAlignmentScore"`
	Recommendations []string                         `json:"recommendations"`
	Timestamp       time.Time                        `json:"timestamp"`
	TotalDurationMS float64                          `json:"totalDurationMs"`
	Errors          map[string]ErrorDetail           `json:"errors,omitempty"`
}

// OrchestrationRecord is the persisted form of an orchestration.
type OrchestrationRecord struct {
	Response   *OrchestrationResponse `json:"response"`
	Request    *OrchestrateRequest    `json:"request,omitempty"`
	Executions []*ExecutionRecord     `json:"executions,omitempty"`
	TenantID   string                 `json:"tenantId,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// ID returns the execution ID of the record.
func (r *OrchestrationRecord) ID() string {
	if r == nil || r.Response == nil {
		return ""
	}
	return r.Response.ExecutionID
}
