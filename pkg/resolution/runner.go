package resolution

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// run carries the per-resolution state the step runner mutates. It is owned
// by a single goroutine.
type run struct {
	templateID string
	issue      string
	base       ActionRequest
	result     *Result
	perf       *api.PerformanceData
	active     *activeSet
}

// runSteps executes steps strictly in order. A failed step degrades the
// result but never stops later steps.
func (s *Service) runSteps(ctx context.Context, r *run, steps []Step) {
	lang, region := r.base.Language, r.base.Region
	for _, st := range steps {
		stepCtx, span := tracer.Start(ctx, "resolution.step", trace.WithAttributes(
			attribute.String("step.id", st.ID),
			attribute.String("action.kind", string(st.Action.Kind)),
		))

		es := ExecutedStep{
			StepID:          st.ID,
			Description:     localizedMessage(st.DescriptionLocal, st.Description, lang),
			Action:          st.Action.Kind,
			FallbackIndex:   -1,
			ExecutedAt:      time.Now(),
			CulturalContext: culturalLabel(lang, region),
		}

		out := s.actions.Execute(stepCtx, st.Action, r.request(st, st.Action.Kind))
		r.count(st.Action.Kind)
		es.Reference = out.Reference

		switch {
		case out.Err == nil && out.Deduplicated:
			es.Status = StepDeduplicated
		case out.Err == nil:
			es.Status = StepSucceeded
		default:
			es.Error = out.Err.Error()
			es.Status = StepFailed
			for i, fb := range st.Fallbacks {
				fout := s.actions.Execute(stepCtx, fb, r.request(st, fb.Kind))
				r.count(fb.Kind)
				r.perf.Resources.FallbacksUsed++
				if fout.Err != nil {
					continue
				}
				es.Status = StepRecovered
				es.FallbackIndex = i
				es.Reference = fout.Reference
				if fb.Kind == ActionEscalation {
					r.escalate("fallback_escalation")
				}
				break
			}
		}

		if es.Status == StepFailed {
			r.escalate("step_failed")
			r.result.FollowUpActions = append(r.result.FollowUpActions, "manual_followup:"+st.ID)
			span.SetStatus(codes.Error, es.Error)
		}
		if st.Action.Kind == ActionEscalation {
			r.escalate("template_escalation")
			if es.Reference != "" {
				r.result.FollowUpActions = append(r.result.FollowUpActions, "escalated:"+es.Reference)
			}
		}
		if cr := completedAction(st, es).CulturalResponse; cr != nil && cr.applies(lang, region) && cr.Note != "" {
			r.result.CulturalNotes = append(r.result.CulturalNotes, cr.Note)
		}

		es.DurationMS = float64(time.Since(es.ExecutedAt).Microseconds()) / 1000
		r.result.ExecutedSteps = append(r.result.ExecutedSteps, es)
		r.active.progress(r.base.SessionID, len(r.result.ExecutedSteps))
		span.End()
	}
}

// completedAction returns the action that completed st: the primary, the
// fallback that recovered it, or the zero Action when the step failed.
func completedAction(st Step, es ExecutedStep) Action {
	switch {
	case es.Status == StepFailed:
		return Action{}
	case es.Status == StepRecovered && es.FallbackIndex >= 0 && es.FallbackIndex < len(st.Fallbacks):
		return st.Fallbacks[es.FallbackIndex]
	default:
		return st.Action
	}
}

func (r *run) request(st Step, kind ActionKind) ActionRequest {
	req := r.base
	req.TemplateID = r.templateID
	req.StepID = st.ID
	req.Params = st.Params
	if needsIdempotency(kind) {
		req.IdempotencyKey = IdempotencyKey(req, r.issue, kind)
	}
	return req
}

func (r *run) count(kind ActionKind) {
	r.perf.Resources.ActionsExecuted++
	if kind != ActionPersistenceUpdate {
		r.perf.Resources.APICalls++
	}
}

func (r *run) escalate(reason string) {
	if !r.result.EscalationRequired {
		escalationsTotal.WithLabelValues(reason).Inc()
	}
	r.result.Resolved = false
	r.result.EscalationRequired = true
}

func culturalLabel(lang, region string) string {
	if region == "" {
		return lang
	}
	return lang + "-" + region
}
