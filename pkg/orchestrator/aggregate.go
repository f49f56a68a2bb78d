package orchestrator

import "github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"

// Recommendation texts.
const (
	RecommendImproveContext    = "Provide richer cultural context parameters to raise alignment above 0.70"
	RecommendEnableLanguage    = "Enable an engine with the language-processing capability for localized handling"
	RecommendKeepConfiguration = "Excellent cultural alignment; keep the current engine configuration"
)

// Alignment thresholds.
const (
	lowAlignment       = 0.7
	excellentAlignment = 0.9
)

// slot is the outcome of one requested engine.
type slot struct {
	typ        api.EngineType
	desc       api.EngineDescriptor
	rec        *api.ExecutionRecord
	durationMS float64
}

// OverallStatus derives success, partial, or failed from the number of
// succeeded engines.
func OverallStatus(succeeded, requested int) api.OverallStatus {
	switch {
	case requested > 0 && succeeded == requested:
		return api.StatusSuccess
	case succeeded > 0:
		return api.StatusPartial
	default:
		return api.StatusFailed
	}
}

// AlignmentScore is the mean context score of the succeeded records.
// Failed records contribute nothing. With no successes it is 0.
func AlignmentScore(recs []*api.ExecutionRecord) float64 {
	var sum float64
	var n int
	for _, r := range recs {
		if r != nil && r.Succeeded() {
			sum += r.ContextScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Recommendations derives the fixed-threshold advice for an orchestration.
func Recommendations(alignment float64, descs []api.EngineDescriptor) []string {
	out := []string{}
	if alignment < lowAlignment {
		out = append(out, RecommendImproveContext)
	}
	hasLanguage := false
	for _, d := range descs {
		if d.HasCapability(api.CapabilityLanguageProcessing) {
			hasLanguage = true
			break
		}
	}
	if !hasLanguage {
		out = append(out, RecommendEnableLanguage)
	}
	if alignment >= excellentAlignment {
		out = append(out, RecommendKeepConfiguration)
	}
	return out
}

// aggregate fills resp from the engine slots.
func aggregate(resp *api.OrchestrationResponse, slots []slot) {
	recs := make([]*api.ExecutionRecord, len(slots))
	descs := make([]api.EngineDescriptor, len(slots))
	succeeded := 0

	for i, s := range slots {
		recs[i] = s.rec
		descs[i] = s.desc
		perf := api.EnginePerformance{
			Success:         s.rec.Succeeded(),
			Status:          s.rec.Status,
			SessionID:       s.rec.SessionID,
			DurationMS:      s.durationMS,
			ContextScore:    s.rec.ContextScore,
			CacheHits:       s.rec.Performance.Cache.Hits,
			CacheMisses:     s.rec.Performance.Cache.Misses,
			ActionsExecuted: s.rec.Performance.Resources.ActionsExecuted,
		}
		resp.Performance[s.typ] = perf

		if s.rec.Succeeded() {
			succeeded++
			resp.Results[s.typ] = s.rec.Output
			continue
		}
		if s.rec.Error != nil {
			resp.Errors[string(s.typ)] = *s.rec.Error
		}
	}

	resp.Status = OverallStatus(succeeded, len(slots))
	resp.AlignmentScore = AlignmentScore(recs)
	resp.Recommendations = Recommendations(resp.AlignmentScore, descs)
	if len(resp.Errors) == 0 {
		resp.Errors = nil
	}
}
