package transport

import (
	"context"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// Orchestrator handles the core orchestrate operation. The returned response
// is never nil when err is nil. A non-nil *api.APIError of type
// invalid_request means validation rejected the request before any engine ran.
type Orchestrator interface {
	Orchestrate(ctx context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error)
}

// OrchestratorFunc is an adapter that allows using an ordinary function
// as an Orchestrator.
type OrchestratorFunc func(ctx context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error)

// Orchestrate calls f(ctx, req).
func (f OrchestratorFunc) Orchestrate(ctx context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error) {
	return f(ctx, req)
}

// ExecutionTracker answers status lookups for running and finished
// orchestrations and cancels running ones.
type ExecutionTracker interface {
	// Lookup returns the record for id. Running executions are reported
	// with status running. Returns storage.ErrNotFound for unknown IDs.
	Lookup(ctx context.Context, id string) (*api.OrchestrationRecord, error)

	// Cancel cancels a running orchestration. It reports false when id is
	// not in flight.
	Cancel(id string) bool

	// Active lists running orchestrations, oldest first.
	Active() []ActiveExecution
}

// EngineCatalog describes the registered engines and their accumulated
// performance.
type EngineCatalog interface {
	Engines() []api.EngineInfo
	Performance() api.PerformanceSnapshot
}

// ListOptions controls pagination, filtering, and ordering for list operations.
type ListOptions struct {
	After  string            // Cursor: return items after this ID.
	Before string            // Cursor: return items before this ID.
	Limit  int               // Maximum number of items to return (default 20, max 100).
	Status api.OverallStatus // Filter by overall status.
	Order  string            // Sort order: "asc" or "desc" (default "desc").
}

// Pagination bounds applied by every ExecutionStore.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// NormalizedLimit clamps the requested limit to the supported range.
func (o ListOptions) NormalizedLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}

// Ascending reports whether results are ordered oldest first.
func (o ListOptions) Ascending() bool {
	return o.Order == "asc"
}

// ExecutionList holds a paginated list of orchestration records.
type ExecutionList struct {
	Object  string                     `json:"object"`
	Data    []*api.OrchestrationRecord `json:"data"`
	HasMore bool                       `json:"has_more"`
	FirstID string                     `json:"first_id"`
	LastID  string                     `json:"last_id"`
}

// NewExecutionList builds a list envelope, filling the cursor fields.
func NewExecutionList(data []*api.OrchestrationRecord, hasMore bool) *ExecutionList {
	if data == nil {
		data = []*api.OrchestrationRecord{}
	}
	l := &ExecutionList{Object: "list", Data: data, HasMore: hasMore}
	if len(data) > 0 {
		l.FirstID = data[0].ID()
		l.LastID = data[len(data)-1].ID()
	}
	return l
}

// ExecutionStore handles persistence and retrieval of orchestration records.
type ExecutionStore interface {
	// SaveExecution persists a finished orchestration. Saving an ID that
	// already exists returns storage.ErrConflict.
	SaveExecution(ctx context.Context, rec *api.OrchestrationRecord) error

	// GetExecution retrieves a record by execution ID. Returns
	// storage.ErrNotFound if it does not exist or belongs to another tenant.
	GetExecution(ctx context.Context, id string) (*api.OrchestrationRecord, error)

	// ListExecutions returns a paginated list of records. Results are
	// filtered by tenant (when present in context) and optionally by status.
	ListExecutions(ctx context.Context, opts ListOptions) (*ExecutionList, error)

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases database connections and resources.
	Close() error
}
