// Package memory provides an in-memory implementation of
// transport.ExecutionStore for development and single-replica deployments.
// Records are lost when the process restarts. Optional LRU eviction limits
// memory usage.
package memory

import (
	"container/list"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

// entry holds a stored record and its position in the LRU list.
type entry struct {
	rec     *api.OrchestrationRecord
	lruElem *list.Element
}

// Store is an in-memory ExecutionStore with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements transport.ExecutionStore at compile time.
var _ transport.ExecutionStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used record is evicted
// when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// SaveExecution persists a record in memory. The record's tenant is taken
// from the context when the record does not carry one.
func (s *Store) SaveExecution(ctx context.Context, rec *api.OrchestrationRecord) error {
	id := rec.ID()
	if id == "" {
		return api.NewInvalidRequestError("executionId", "record has no execution ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return storage.ErrConflict
	}
	if rec.TenantID == "" {
		rec.TenantID = storage.GetTenant(ctx)
	}

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(id)
	s.entries[id] = &entry{rec: rec, lruElem: elem}
	return nil
}

// GetExecution retrieves a record by ID and marks it recently used.
// Returns ErrNotFound if the record does not exist or is owned by another
// tenant.
func (s *Store) GetExecution(ctx context.Context, id string) (*api.OrchestrationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !storage.Visible(ctx, e.rec.TenantID) {
		return nil, storage.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.rec, nil
}

// ListExecutions returns a paginated list of stored records filtered by
// tenant and optionally by status, ordered by creation time.
func (s *Store) ListExecutions(ctx context.Context, opts transport.ListOptions) (*transport.ExecutionList, error) {
	s.mu.Lock()
	var matches []*api.OrchestrationRecord
	for _, e := range s.entries {
		if !storage.Visible(ctx, e.rec.TenantID) {
			continue
		}
		if opts.Status != "" && e.rec.Response.Status != opts.Status {
			continue
		}
		matches = append(matches, e.rec)
	}
	s.mu.Unlock()

	// Sort by created_at. Default is desc (newest first).
	asc := opts.Ascending()
	slices.SortFunc(matches, func(a, b *api.OrchestrationRecord) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = strings.Compare(a.ID(), b.ID())
		}
		if !asc {
			c = -c
		}
		return c
	})

	// Apply cursor-based pagination.
	if opts.After != "" {
		idx := indexOf(matches, opts.After)
		if idx >= 0 {
			matches = matches[idx+1:]
		} else {
			matches = nil
		}
	} else if opts.Before != "" {
		idx := indexOf(matches, opts.Before)
		if idx > 0 {
			matches = matches[:idx]
		} else {
			matches = nil
		}
	}

	limit := opts.NormalizedLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	return transport.NewExecutionList(matches, hasMore), nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func indexOf(recs []*api.OrchestrationRecord, id string) int {
	return slices.IndexFunc(recs, func(r *api.OrchestrationRecord) bool { return r.ID() == id })
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
	debug.Log("storage", "evicted execution record", "execution_id", id)
}
