package resolution

import (
	"maps"
	"sync"
)

// Stats accumulates resolution outcomes. It is safe for concurrent use.
type Stats struct {
	mu          sync.Mutex
	total       int
	resolved    int
	escalated   int
	totalTimeMS float64
	byCategory  map[Category]int
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Total          int              `json:"total"`
	Resolved       int              `json:"resolved"`
	Escalated      int              `json:"escalated"`
	ResolutionRate float64          `json:"resolutionRate"`
	AverageTimeMS  float64          `json:"averageTimeMs"`
	ByCategory     map[Category]int `json:"byCategory"`
}

// NewStats creates an empty aggregator.
func NewStats() *Stats {
	return &Stats{byCategory: make(map[Category]int)}
}

// Record adds one result.
func (s *Stats) Record(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if r.Resolved {
		s.resolved++
	}
	if r.EscalationRequired {
		s.escalated++
	}
	s.totalTimeMS += r.ExecutionTimeMS
	s.byCategory[r.Classification.Category]++
}

// Snapshot returns the current totals.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Total:      s.total,
		Resolved:   s.resolved,
		Escalated:  s.escalated,
		ByCategory: maps.Clone(s.byCategory),
	}
	if s.total > 0 {
		snap.ResolutionRate = float64(s.resolved) / float64(s.total)
		snap.AverageTimeMS = s.totalTimeMS / float64(s.total)
	}
	return snap
}
