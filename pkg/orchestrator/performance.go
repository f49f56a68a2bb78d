package orchestrator

import (
	"maps"
	"sync"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// PerformanceAggregator accumulates orchestration and per-engine totals.
// It is safe for concurrent use.
type PerformanceAggregator struct {
	mu             sync.Mutex
	since          time.Time
	orchestrations int64
	byStatus       map[api.OverallStatus]int64
	byMode         map[api.ExecutionMode]int64
	engines        map[api.EngineType]*engineTotals
}

type engineTotals struct {
	stats      api.EngineStats
	scoreSum   float64
	scoreCount int64
}

// NewPerformanceAggregator creates an empty aggregator.
func NewPerformanceAggregator() *PerformanceAggregator {
	return &PerformanceAggregator{
		since:    time.Now().UTC(),
		byStatus: make(map[api.OverallStatus]int64),
		byMode:   make(map[api.ExecutionMode]int64),
		engines:  make(map[api.EngineType]*engineTotals),
	}
}

// Record adds one finished orchestration.
func (a *PerformanceAggregator) Record(resp *api.OrchestrationResponse, slots []slot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.orchestrations++
	a.byStatus[resp.Status]++
	a.byMode[resp.ExecutionMode]++

	for _, s := range slots {
		t, ok := a.engines[s.typ]
		if !ok {
			t = &engineTotals{}
			a.engines[s.typ] = t
		}
		st := &t.stats
		st.Executions++
		st.TotalDurationMS += s.durationMS
		st.APICalls += int64(s.rec.Performance.Resources.APICalls)
		st.CacheHits += int64(s.rec.Performance.Cache.Hits)
		st.CacheMisses += int64(s.rec.Performance.Cache.Misses)

		switch {
		case s.rec.Succeeded():
			st.Succeeded++
			t.scoreSum += s.rec.ContextScore
			t.scoreCount++
		case s.rec.Error != nil && s.rec.Error.Code == api.CodeTimeout:
			st.Failed++
			st.TimedOut++
		default:
			st.Failed++
		}

		at := resp.Timestamp
		st.LastExecutedAt = &at
	}
}

// Snapshot returns a copy of the current totals with averages filled in.
func (a *PerformanceAggregator) Snapshot() api.PerformanceSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := api.PerformanceSnapshot{
		Orchestrations: a.orchestrations,
		ByStatus:       maps.Clone(a.byStatus),
		ByMode:         maps.Clone(a.byMode),
		Engines:        make(map[api.EngineType]api.EngineStats, len(a.engines)),
		Since:          a.since,
	}
	for typ, t := range a.engines {
		st := t.stats
		if st.Executions > 0 {
			st.AverageDurationMS = st.TotalDurationMS / float64(st.Executions)
		}
		if t.scoreCount > 0 {
			st.AverageContextScore = t.scoreSum / float64(t.scoreCount)
		}
		if st.LastExecutedAt != nil {
			at := *st.LastExecutedAt
			st.LastExecutedAt = &at
		}
		snap.Engines[typ] = st
	}
	return snap
}
