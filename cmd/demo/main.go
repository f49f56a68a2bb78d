// Command demo walks through an in-process orchestration: engine registry,
// execution mode planning, automated resolution and aggregation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/cultural"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/idempotency"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/orchestrator"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/resolution"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/sinks"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage/memory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fmt.Println("=== steer orchestration demo ===")
	fmt.Println()

	// 1. Registry
	kb, err := resolution.NewKnowledgeBase(resolution.DefaultKnowledge())
	if err != nil {
		return err
	}
	svc := resolution.NewService(kb, sinks.NewLog(quiet).Sinks(), idempotency.NewMemory(time.Hour), resolution.Config{})

	f := engine.NewFactory()
	if err := svc.Register(f); err != nil {
		return err
	}
	if err := cultural.Register(f); err != nil {
		return err
	}
	if err := f.Verify(); err != nil {
		return err
	}

	fmt.Println("[1] Registered engines:")
	for _, d := range f.Descriptors() {
		fmt.Printf("    %-22s status=%-8s cost=%.1f\n", d.ID, d.Status, d.ResourceCost)
	}

	// 2. Mode planning
	fmt.Println("\n[2] Adaptive mode planning:")
	descs := f.Descriptors()
	for _, p := range []api.Priority{api.PriorityNormal, api.PriorityCritical} {
		mode := orchestrator.ResolveMode(api.ModeAdaptive, api.ModeAdaptive, p, descs, orchestrator.DefaultAdaptiveCostThreshold)
		fmt.Printf("    priority=%-8s -> %s\n", p, mode)
	}
	mode := orchestrator.ResolveMode(api.ModeAdaptive, api.ModeAdaptive, api.PriorityNormal, descs, 1.0)
	fmt.Printf("    threshold=1.0       -> %s\n", mode)

	o := orchestrator.New(f, memory.New(100), orchestrator.DefaultConfig())

	// 3. Resolution with cultural context
	fmt.Println("\n[3] Payment issue during Onam:")
	resp, err := o.Orchestrate(ctx, &api.OrchestrateRequest{
		Engines: []api.EngineType{api.EngineAutomatedResolution, api.EngineCulturalContext},
		CulturalContext: api.CulturalContext{
			Language: "ml",
			Region:   "Kochi",
			Festival: "Onam",
		},
		InputData: map[string]any{
			"issue":    map[string]any{"type": "payment", "description": "payment failed twice, amount deducted"},
			"customer": map[string]any{"id": "cust-42", "preferredLanguage": "ml"},
		},
	})
	if err != nil {
		return err
	}
	printResponse(resp)

	// 4. Escalation
	fmt.Println("\n[4] Driver conduct complaint:")
	resp, err = o.Orchestrate(ctx, &api.OrchestrateRequest{
		Engines: []api.EngineType{api.EngineAutomatedResolution},
		InputData: map[string]any{
			"issue": map[string]any{"description": "the driver was rude and abusive"},
		},
	})
	if err != nil {
		return err
	}
	if res, ok := resp.Results[api.EngineAutomatedResolution].(*resolution.Result); ok {
		fmt.Printf("    category=%s escalation=%v template=%s\n",
			res.Classification.Category, res.EscalationRequired, res.TemplateID)
	}

	// 5. Validation failure
	fmt.Println("\n[5] Validation failure:")
	resp, err = o.Orchestrate(ctx, &api.OrchestrateRequest{
		Engines: []api.EngineType{"quantum-oracle"},
	})
	if err != nil {
		fmt.Printf("    rejected: %v\n", err)
	}
	if resp != nil {
		fmt.Printf("    status=%s\n", resp.Status)
	}

	// 6. Accumulated performance
	fmt.Println("\n[6] Performance snapshot:")
	data, _ := json.MarshalIndent(o.Performance(), "    ", "  ")
	fmt.Printf("    %s\n", data)

	fmt.Println("\n=== demo complete ===")
	return nil
}

func printResponse(resp *api.OrchestrationResponse) {
	fmt.Printf("    execution=%s mode=%s status=%s alignment=%.2f\n",
		resp.ExecutionID, resp.ExecutionMode, resp.Status, resp.AlignmentScore)
	for typ, perf := range resp.Performance {
		fmt.Printf("    %-22s success=%v score=%.2f duration=%.1fms\n",
			typ, perf.Success, perf.ContextScore, perf.DurationMS)
	}
	if res, ok := resp.Results[api.EngineAutomatedResolution].(*resolution.Result); ok {
		fmt.Printf("    resolved=%v template=%s steps=%d\n", res.Resolved, res.TemplateID, len(res.ExecutedSteps))
		if res.Summary != "" {
			fmt.Printf("    summary: %s\n", res.Summary)
		}
	}
	fmt.Printf("    recommendations: %v\n", resp.Recommendations)
}
