package api

import "time"

// ExecutionStatus is the lifecycle state of a single engine execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Error codes carried in ErrorDetail.Code.
const (
	CodeInvalidInput      = "invalid_input"
	CodeEngineError       = "engine_error"
	CodeInternalError     = "internal_error"
	CodeTimeout           = "timeout"
	CodeCancelled         = "cancelled"
	CodeConstructionError = "construction_error"
)

// ErrorDetail describes why an execution failed.
type ErrorDetail struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// ResourceCounters counts the external work an execution performed.
type ResourceCounters struct {
	APICalls        int `json:"apiCalls"`
	ActionsExecuted int `json:"actionsExecuted"`
	FallbacksUsed   int `json:"fallbacksUsed"`
}

// CacheCounters counts knowledge lookups that hit or missed.
type CacheCounters struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// PerformanceData is the per-execution performance block.
type PerformanceData struct {
	ProcessingTimeMS float64          `json:"processingTimeMs"`
	Resources        ResourceCounters `json:"resources"`
	Cache            CacheCounters    `json:"cache"`
}

// ExecutionRecord captures one invocation of an engine.
type ExecutionRecord struct {
	EngineID    EngineType      `json:"engineId"`
	SessionID   string          `json:"sessionId"`
	ExecutionID string          `json:"executionId,omitempty"`
	Input       map[string]any  `json:"input,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	Status      ExecutionStatus `json:"status"`
	EndedAt     *time.Time      `json:"endedAt,omitempty"`
	Output      any             `json:"output,omitempty"`
	Error       *ErrorDetail    `json:"error,omitempty"`
	Performance PerformanceData `json:"performance"`

	// ContextScore is the engine's own estimate, in [0,1], of how well its
	// output fit the customer's cultural context.
	ContextScore float64 `json:"contextScore"`
}

// NewExecutionRecord returns a running record for the given engine.
func NewExecutionRecord(engineID EngineType, executionID string, input map[string]any) *ExecutionRecord {
	return &ExecutionRecord{
		EngineID:    engineID,
		SessionID:   NewSessionID(),
		ExecutionID: executionID,
		Input:       input,
		StartedAt:   time.Now(),
		Status:      ExecutionStatusRunning,
	}
}

// Complete moves the record to completed with the given output and score.
func (r *ExecutionRecord) Complete(output any, score float64) {
	r.finish(ExecutionStatusCompleted)
	r.Output = output
	r.ContextScore = score
}

// Fail moves the record to failed with the given error detail.
func (r *ExecutionRecord) Fail(code, message string, recoverable bool) {
	r.finish(ExecutionStatusFailed)
	r.Error = &ErrorDetail{Code: code, Message: message, Recoverable: recoverable}
}

// Succeeded reports whether the record completed successfully.
func (r *ExecutionRecord) Succeeded() bool {
	return r.Status == ExecutionStatusCompleted
}

func (r *ExecutionRecord) finish(to ExecutionStatus) {
	now := time.Now()
	r.Status = to
	r.EndedAt = &now
	r.Performance.ProcessingTimeMS = float64(now.Sub(r.StartedAt).Microseconds()) / 1000
}
