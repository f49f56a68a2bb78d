package resolution

import (
	"slices"
	"sync"
	"time"
)

// ActiveResolution describes a resolution that has started and not finished.
type ActiveResolution struct {
	SessionID      string    `json:"sessionId"`
	ExecutionID    string    `json:"executionId,omitempty"`
	CustomerID     string    `json:"customerId,omitempty"`
	Category       Category  `json:"category"`
	TemplateID     string    `json:"templateId,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	StepsCompleted int       `json:"stepsCompleted"`
	StepsTotal     int       `json:"stepsTotal"`
}

type activeSet struct {
	mu sync.RWMutex
	m  map[string]*ActiveResolution
}

func newActiveSet() *activeSet {
	return &activeSet{m: make(map[string]*ActiveResolution)}
}

func (a *activeSet) start(r ActiveResolution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[r.SessionID] = &r
}

func (a *activeSet) setTemplate(sessionID, templateID string, steps int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.m[sessionID]; ok {
		r.TemplateID = templateID
		r.StepsTotal = steps
	}
}

func (a *activeSet) progress(sessionID string, completed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.m[sessionID]; ok {
		r.StepsCompleted = completed
	}
}

func (a *activeSet) finish(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.m, sessionID)
}

// list returns copies ordered by start time.
func (a *activeSet) list() []ActiveResolution {
	a.mu.RLock()
	out := make([]ActiveResolution, 0, len(a.m))
	for _, r := range a.m {
		out = append(out, *r)
	}
	a.mu.RUnlock()
	slices.SortFunc(out, func(x, y ActiveResolution) int {
		return x.StartedAt.Compare(y.StartedAt)
	})
	return out
}
