package orchestrator

import "github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"

// DefaultAdaptiveCostThreshold is the summed resource cost up to which
// adaptive mode dispatches in parallel.
const DefaultAdaptiveCostThreshold = 2.0

// ResolveMode returns the dispatch mode actually used for a request. Empty
// requested modes fall back to defaultMode.
func ResolveMode(requested, defaultMode api.ExecutionMode, priority api.Priority, descs []api.EngineDescriptor, threshold float64) api.ExecutionMode {
	mode := requested
	if mode == "" {
		mode = defaultMode
	}
	if mode != api.ModeAdaptive {
		return mode
	}

	if len(descs) <= 1 {
		return api.ModeSequential
	}
	if priority == api.PriorityCritical {
		return api.ModeParallel
	}
	if threshold <= 0 {
		threshold = DefaultAdaptiveCostThreshold
	}
	var cost float64
	for _, d := range descs {
		cost += d.ResourceCost
	}
	if cost <= threshold {
		return api.ModeParallel
	}
	return api.ModeSequential
}
