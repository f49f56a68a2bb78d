package api

import (
	"encoding/json"
	"time"
)

// EngineInfo is the catalog entry for a registered engine.
type EngineInfo struct {
	EngineDescriptor
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// EngineStats accumulates the executions of one engine type.
type EngineStats struct {
	Executions          int64      `json:"executions"`
	Succeeded           int64      `json:"succeeded"`
	Failed              int64      `json:"failed"`
	TimedOut            int64      `json:"timedOut"`
	TotalDurationMS     float64    `json:"totalDurationMs"`
	AverageDurationMS   float64    `json:"averageDurationMs"`
	AverageContextScore float64    `json:"averageContextScore"`
	APICalls            int64      `json:"apiCalls"`
	CacheHits           int64      `json:"cacheHits"`
	CacheMisses         int64      `json:"cacheMisses"`
	LastExecutedAt      *time.Time `json:"lastExecutedAt,omitempty"`
}

// PerformanceSnapshot is a point-in-time copy of the orchestrator's
// performance counters.
type PerformanceSnapshot struct {
	Orchestrations int64                      `json:"orchestrations"`
	ByStatus       map[OverallStatus]int64    `json:"byStatus"`
	ByMode         map[ExecutionMode]int64    `json:"byMode"`
	Engines        map[EngineType]EngineStats `json:"engines"`
	Since          time.Time                  `json:"since"`
}
