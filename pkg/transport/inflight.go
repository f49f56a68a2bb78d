package transport

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// ActiveExecution describes an orchestration that is still running.
type ActiveExecution struct {
	ID        string            `json:"executionId"`
	Engines   []api.EngineType  `json:"engines"`
	Mode      api.ExecutionMode `json:"executionMode"`
	Priority  api.Priority      `json:"priority,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
}

type inflightEntry struct {
	info   ActiveExecution
	cancel context.CancelFunc
}

// InFlightRegistry tracks running orchestrations for introspection and
// explicit cancellation. It maps execution IDs to their descriptions and
// cancel functions, allowing a DELETE request to cancel an orchestration
// that is still in progress.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]inflightEntry
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]inflightEntry),
	}
}

// Register adds an in-flight execution to the registry. The cancel function
// will be called if the execution is explicitly cancelled.
func (r *InFlightRegistry) Register(info ActiveExecution, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.Engines = slices.Clone(info.Engines)
	r.entries[info.ID] = inflightEntry{info: info, cancel: cancel}
}

// Cancel cancels an in-flight execution by calling its cancel function.
// Returns true if the execution was found and cancelled, false if the ID
// was not registered (either already completed or never existed).
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.cancel()
	delete(r.entries, id)
	return true
}

// Remove removes an execution from the registry without cancelling it.
// Called when an orchestration completes normally.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Get returns the description of a running execution.
func (r *InFlightRegistry) Get(id string) (ActiveExecution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ActiveExecution{}, false
	}
	info := e.info
	info.Engines = slices.Clone(info.Engines)
	return info, true
}

// List returns all running executions, oldest first.
func (r *InFlightRegistry) List() []ActiveExecution {
	r.mu.Lock()
	out := make([]ActiveExecution, 0, len(r.entries))
	for _, e := range r.entries {
		info := e.info
		info.Engines = slices.Clone(info.Engines)
		out = append(out, info)
	}
	r.mu.Unlock()
	slices.SortFunc(out, func(a, b ActiveExecution) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of running executions.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
