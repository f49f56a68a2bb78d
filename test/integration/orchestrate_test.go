package integration

import (
	"net/http"
	"testing"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution"
)

func TestResolvePaymentFailure(t *testing.T) {
	out := orchestrate(t, map[string]any{
		"engines": []string{"automated-resolution"},
		"inputData": map[string]any{
			"issue":    map[string]any{"type": "payment", "description": "payment failed twice"},
			"customer": map[string]any{"id": "cust-payment-1"},
		},
	}, http.StatusOK)

	if out.Status != api.StatusSuccess {
		t.Errorf("status = %q, want %q", out.Status, api.StatusSuccess)
	}
	if !api.ValidateExecutionID(out.ExecutionID) {
		t.Errorf("executionId = %q, want a valid execution ID", out.ExecutionID)
	}
	// A single engine always runs sequentially.
	if out.ExecutionMode != api.ModeSequential {
		t.Errorf("executionMode = %q, want %q", out.ExecutionMode, api.ModeSequential)
	}

	res := resolutionResult(t, out)
	if !res.Resolved {
		t.Errorf("resolved = false, want true (steps: %+v)", res.ExecutedSteps)
	}
	if res.TemplateID != "payment_failed_transaction" {
		t.Errorf("templateId = %q, want \"payment_failed_transaction\"", res.TemplateID)
	}
	if res.Classification.Category != resolution.CategoryPayment {
		t.Errorf("category = %q, want %q", res.Classification.Category, resolution.CategoryPayment)
	}
	if len(res.ExecutedSteps) == 0 {
		t.Fatal("no executed steps")
	}

	perf := out.Performance[api.EngineAutomatedResolution]
	if !perf.Success {
		t.Error("performance.success = false, want true")
	}
	if perf.SessionID == "" {
		t.Fatal("performance.sessionId is empty")
	}

	// Every action reached the sink tagged with the engine session.
	paths := map[string]bool{}
	for _, d := range testEnv.Sink.forSession(perf.SessionID) {
		paths[d.Path] = true
	}
	for _, want := range []string{"/remote/payments/verify_transaction", "/refunds", "/notifications"} {
		if !paths[want] {
			t.Errorf("no delivery to %s for session %s (got %v)", want, perf.SessionID, paths)
		}
	}
}

func TestRefundIsIdempotent(t *testing.T) {
	req := map[string]any{
		"engines": []string{"automated-resolution"},
		"inputData": map[string]any{
			"issue":    map[string]any{"description": "I was charged twice for the same ride"},
			"customer": map[string]any{"id": "cust-idem-1"},
		},
	}

	first := orchestrate(t, req, http.StatusOK)
	var key string
	for _, d := range testEnv.Sink.forSession(first.Performance[api.EngineAutomatedResolution].SessionID) {
		if d.Path == "/refunds" {
			key = d.IdempotencyKey
		}
	}
	if key == "" {
		t.Fatal("first resolution sent no refund with an idempotency key")
	}

	second := orchestrate(t, req, http.StatusOK)
	if second.ExecutionID == first.ExecutionID {
		t.Error("repeated request reused the execution ID")
	}
	if n := testEnv.Sink.countKey("/refunds", key); n != 1 {
		t.Errorf("refund deliveries with key %s = %d, want 1", key, n)
	}

	firstRef := refundReference(resolutionResult(t, first))
	secondRef := refundReference(resolutionResult(t, second))
	if firstRef == "" || firstRef != secondRef {
		t.Errorf("refund references = %q and %q, want the same non-empty reference", firstRef, secondRef)
	}
}

func refundReference(res resolution.Result) string {
	for _, s := range res.ExecutedSteps {
		if s.Action == resolution.ActionRefund {
			return s.Reference
		}
	}
	return ""
}

func TestDriverMisconductEscalates(t *testing.T) {
	out := orchestrate(t, map[string]any{
		"engines": []string{"automated-resolution"},
		"inputData": map[string]any{
			"issue":    map[string]any{"description": "The driver was rude and drove rash"},
			"customer": map[string]any{"id": "cust-conduct-1"},
		},
	}, http.StatusOK)

	res := resolutionResult(t, out)
	if !res.Classification.RequiresHuman {
		t.Error("requiresHumanIntervention = false, want true")
	}
	if !res.EscalationRequired {
		t.Error("escalationRequired = false, want true")
	}
	if res.Resolved {
		t.Error("resolved = true, want false")
	}
	if res.TemplateID != resolution.HumanReviewTemplateID {
		t.Errorf("templateId = %q, want %q", res.TemplateID, resolution.HumanReviewTemplateID)
	}
	if len(res.ExecutedSteps) != 0 {
		t.Errorf("executed %d template steps, want none", len(res.ExecutedSteps))
	}

	session := out.Performance[api.EngineAutomatedResolution].SessionID
	deliveries := testEnv.Sink.forSession(session)
	if len(deliveries) != 1 || deliveries[0].Path != "/escalations" {
		t.Errorf("deliveries = %+v, want a single escalation", deliveries)
	}
}

func TestCulturalAndResolutionInParallel(t *testing.T) {
	out := orchestrate(t, map[string]any{
		"engines":  []string{"automated-resolution", "cultural-context"},
		"priority": "critical",
		"culturalContext": map[string]any{
			"language":           "ml",
			"region":             "Kochi",
			"festival":           "Onam",
			"communicationStyle": "respectful",
		},
		"inputData": map[string]any{
			"issue":    map[string]any{"description": "payment failed during Onam"},
			"customer": map[string]any{"id": "cust-onam-1", "preferredLanguage": "ml"},
		},
	}, http.StatusOK)

	if out.ExecutionMode != api.ModeParallel {
		t.Errorf("executionMode = %q, want %q for critical priority", out.ExecutionMode, api.ModeParallel)
	}
	if out.Status != api.StatusSuccess {
		t.Errorf("status = %q, want %q (errors: %v)", out.Status, api.StatusSuccess, out.Errors)
	}
	if len(out.Performance) != 2 {
		t.Errorf("performance entries = %d, want 2", len(out.Performance))
	}
	if out.AlignmentScore <= 0 || out.AlignmentScore > 1 {
		t.Errorf("culturalAlignmentScore = %g, want within (0, 1]", out.AlignmentScore)
	}
	if out.Recommendations == nil {
		t.Error("recommendations is null, want an array")
	}

	// The festival selects the festival variant of the template.
	res := resolutionResult(t, out)
	found := false
	for _, s := range res.ExecutedSteps {
		if s.StepID == "festival_greeting" {
			found = true
		}
	}
	if !found {
		t.Errorf("festival_greeting step not executed (steps: %+v)", res.ExecutedSteps)
	}
}

func TestInvalidEngineInputRejected(t *testing.T) {
	out := orchestrate(t, map[string]any{
		"engines":       []string{"automated-resolution", "cultural-context"},
		"executionMode": "sequential",
		"inputData": map[string]any{
			"issue": map[string]any{"description": 42},
		},
	}, http.StatusBadRequest)

	if out.Status != api.StatusFailed {
		t.Errorf("status = %q, want %q", out.Status, api.StatusFailed)
	}
	if _, ok := out.Errors[api.ErrorKeyValidation]; !ok {
		t.Errorf("errors = %v, want a validation entry", out.Errors)
	}
	if len(out.Performance) != 0 {
		t.Errorf("performance = %v, want no engine to have run", out.Performance)
	}
}
