package resolution

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
)

// Template IDs reported when no specific template ran.
const (
	GenericTemplateID     = "generic"
	HumanReviewTemplateID = "human_review"
)

var tracer = otel.Tracer("github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution")

// Config holds resolution engine settings.
type Config struct {
	// ActionTimeout applies to actions without their own timeout.
	ActionTimeout time.Duration

	// EscalationQueue receives issues that always need a human.
	EscalationQueue string
}

// Service classifies issues and runs resolution templates. One Service is
// shared by every Engine instance the factory creates.
type Service struct {
	kb      *KnowledgeBase
	actions *ActionExecutor
	active  *activeSet
	stats   *Stats
	queue   string
}

// NewService creates a resolution service over kb. dedupe may be nil.
func NewService(kb *KnowledgeBase, sinks Sinks, dedupe Deduper, cfg Config) *Service {
	if cfg.EscalationQueue == "" {
		cfg.EscalationQueue = "driver-conduct"
	}
	return &Service{
		kb:      kb,
		actions: NewActionExecutor(sinks, dedupe, cfg.ActionTimeout),
		active:  newActiveSet(),
		stats:   NewStats(),
		queue:   cfg.EscalationQueue,
	}
}

// Knowledge returns the knowledge base the service reads from.
func (s *Service) Knowledge() *KnowledgeBase { return s.kb }

// AddTemplate validates t and publishes it in a new knowledge snapshot.
// Resolutions already running keep the snapshot they started with.
func (s *Service) AddTemplate(t Template) error {
	return s.kb.AddTemplate(t)
}

// ActiveResolutions lists resolutions in progress.
func (s *Service) ActiveResolutions() []ActiveResolution {
	return s.active.list()
}

// Stats returns aggregate resolution outcomes.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Outcome is what one resolution produced.
type Outcome struct {
	Result       *Result
	Performance  api.PerformanceData
	ContextScore float64
}

// Resolve classifies the issue and executes the matching template.
func (s *Service) Resolve(ctx context.Context, sessionID string, ectx engine.ExecutionContext, in Input) Outcome {
	snap := s.kb.Snapshot()
	cls := snap.Classifier().Classify(in.Issue.Description, in.Issue.Type, in.Customer, ectx.Cultural)

	ctx, span := tracer.Start(ctx, "resolution.resolve", trace.WithAttributes(
		attribute.String("category", string(cls.Category)),
		attribute.String("subcategory", cls.Subcategory),
	))
	defer span.End()

	s.active.start(ActiveResolution{
		SessionID:   sessionID,
		ExecutionID: ectx.ExecutionID,
		CustomerID:  in.Customer.ID,
		Category:    cls.Category,
		StartedAt:   time.Now(),
	})
	defer s.active.finish(sessionID)

	result := &Result{
		Resolved:        true,
		Classification:  cls,
		ExecutedSteps:   []ExecutedStep{},
		FollowUpActions: []string{},
		CulturalNotes:   []string{},
	}
	var perf api.PerformanceData
	r := &run{
		issue: in.Issue.Description,
		base: ActionRequest{
			SessionID:  sessionID,
			CustomerID: in.Customer.ID,
			Category:   cls.Category,
			Language:   cls.Language,
			Region:     region(in.Customer, ectx.Cultural),
			BookingID:  in.Issue.BookingID,
			Amount:     in.Issue.Amount,
		},
		result: result,
		perf:   &perf,
		active: s.active,
	}

	start := time.Now()
	localized := cls.Language == "en"
	if cls.RequiresHuman {
		s.escalateToHuman(ctx, r)
	} else {
		tmpl, ok := snap.Lookup(cls.Category, cls.Subcategory)
		if ok {
			perf.Cache.Hits++
			result.TemplateID = tmpl.Key()
		} else {
			perf.Cache.Misses++
			result.TemplateID = GenericTemplateID
			result.FollowUpActions = append(result.FollowUpActions, "add_template:"+TemplateKey(cls.Category, cls.Subcategory))
		}
		localized = localized || tmpl.LocalizedFor(cls.Language)
		r.templateID = result.TemplateID

		steps := tmpl.StepsFor(ectx.Cultural.ActiveSituation())
		s.active.setTemplate(sessionID, result.TemplateID, len(steps))
		debug.Log("resolution", "running template",
			"session_id", sessionID,
			"template", result.TemplateID,
			"situation", ectx.Cultural.ActiveSituation(),
			"steps", len(steps),
		)
		s.runSteps(ctx, r, steps)
	}
	elapsed := time.Since(start)
	result.ExecutionTimeMS = float64(elapsed.Microseconds()) / 1000
	resolutionDuration.WithLabelValues(string(cls.Category)).Observe(elapsed.Seconds())

	result.Summary = Summary(cls.Language, cls.Category, len(result.ExecutedSteps), result.Resolved)
	sat := EstimateSatisfaction(result.Resolved, in.Customer)
	result.CustomerSatisfaction = &sat
	s.stats.Record(result)

	slog.Info("resolution finished",
		"session_id", sessionID,
		"category", cls.Category,
		"template", result.TemplateID,
		"resolved", result.Resolved,
		"escalation_required", result.EscalationRequired,
		"steps", len(result.ExecutedSteps),
	)
	span.SetAttributes(attribute.Bool("resolved", result.Resolved))
	perf.ProcessingTimeMS = result.ExecutionTimeMS
	return Outcome{
		Result:       result,
		Performance:  perf,
		ContextScore: ContextScore(result, localized),
	}
}

// escalateToHuman hands the issue to the conduct queue without running any
// template steps.
func (s *Service) escalateToHuman(ctx context.Context, r *run) {
	r.templateID = HumanReviewTemplateID
	r.result.TemplateID = HumanReviewTemplateID
	s.active.setTemplate(r.base.SessionID, HumanReviewTemplateID, 0)

	a := Action{
		Kind: ActionEscalation,
		Escalation: &Escalation{
			Queue:    s.queue,
			Reason:   "requires human review: " + string(r.result.Classification.Category),
			Priority: "high",
		},
	}
	req := r.request(Step{ID: "policy_escalation"}, a.Kind)
	out := s.actions.Execute(ctx, a, req)
	r.count(a.Kind)
	r.escalate("policy")
	switch {
	case out.Err != nil:
		slog.Warn("policy escalation failed", "session_id", r.base.SessionID, "error", out.Err)
		r.result.FollowUpActions = append(r.result.FollowUpActions, "manual_followup:policy_escalation")
	case out.Reference != "":
		r.result.FollowUpActions = append(r.result.FollowUpActions, "escalated:"+out.Reference)
	}
}

func region(c api.CustomerContext, cc api.CulturalContext) string {
	if cc.Region != "" {
		return cc.Region
	}
	return c.CulturalProfile.Region
}

// EstimateSatisfaction predicts customer satisfaction for an outcome.
func EstimateSatisfaction(resolved bool, c api.CustomerContext) float64 {
	score := 0.4
	if resolved {
		score = 0.85
	}
	if n := len(c.SatisfactionHistory); n > 0 {
		var sum float64
		for _, v := range c.SatisfactionHistory {
			sum += v
		}
		score = (score + sum/float64(n)) / 2
	}
	if resolved && (c.LoyaltyTier == "gold" || c.LoyaltyTier == "platinum") {
		score += 0.05
	}
	return min(max(score, 0), 1)
}

// ContextScore rates how well the resolution fit the customer's cultural
// setting.
func ContextScore(res *Result, localized bool) float64 {
	score := 0.5
	if localized {
		score += 0.2
	}
	if len(res.CulturalNotes) > 0 || len(res.Classification.CulturalTags) == 0 {
		score += 0.2
	}
	if res.Classification.Confidence >= 0.8 {
		score += 0.1
	}
	return min(score, 1)
}
