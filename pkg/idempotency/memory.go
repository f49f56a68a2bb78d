package idempotency

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
)

// DefaultTTL is how long a completed key is remembered.
const DefaultTTL = 24 * time.Hour

type entry struct {
	ref     string
	expires time.Time
}

// Memory is an in-process deduper. Concurrent calls with the same key are
// collapsed so fn runs once.
type Memory struct {
	group singleflight.Group
	ttl   time.Duration
	now   func() time.Time

	mu   sync.Mutex
	done map[string]entry
}

// NewMemory creates an in-memory deduper. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:  ttl,
		now:  time.Now,
		done: make(map[string]entry),
	}
}

// Do runs fn unless key already completed. deduplicated is true when the
// returned reference came from an earlier or concurrent call.
func (m *Memory) Do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (string, bool, error) {
	if ref, ok := m.lookup(key); ok {
		debug.Log("actions", "idempotency hit", "key", key)
		return ref, true, nil
	}

	ran := false
	v, err, _ := m.group.Do(key, func() (any, error) {
		if ref, ok := m.lookup(key); ok {
			return ref, nil
		}
		ran = true
		ref, err := fn(ctx)
		if err != nil {
			return "", err
		}
		m.store(key, ref)
		return ref, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), !ran, nil
}

// Len returns the number of remembered keys, including expired ones not yet
// swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.done)
}

func (m *Memory) lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.done[key]
	if !ok {
		return "", false
	}
	if m.now().After(e.expires) {
		delete(m.done, key)
		return "", false
	}
	return e.ref, true
}

func (m *Memory) store(key, ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.done[key] = entry{ref: ref, expires: now.Add(m.ttl)}
	if len(m.done)%1024 == 0 {
		for k, e := range m.done {
			if now.After(e.expires) {
				delete(m.done, k)
			}
		}
	}
}
