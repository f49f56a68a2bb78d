package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
)

// inputSchema is the JSON Schema for engine input.
const inputSchema = `{
  "type": "object",
  "required": ["issue"],
  "properties": {
    "issue": {
      "type": "object",
      "required": ["description"],
      "properties": {
        "type": {"type": "string"},
        "description": {"type": "string", "minLength": 1},
        "bookingId": {"type": "string"},
        "amount": {"type": "number", "minimum": 0}
      }
    },
    "customer": {
      "type": "object",
      "properties": {
        "id": {"type": "string"},
        "preferredLanguage": {"type": "string"},
        "loyaltyTier": {"type": "string"},
        "satisfactionHistory": {
          "type": "array",
          "items": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

var schema = engine.MustCompileSchema(string(api.EngineAutomatedResolution), inputSchema)

// Descriptor returns the automated-resolution engine descriptor.
func Descriptor() api.EngineDescriptor {
	return api.EngineDescriptor{
		ID:      api.EngineAutomatedResolution,
		Name:    "Automated Resolution",
		Version: "1.2.0",
		Capabilities: []api.Capability{
			{
				Name:        "issue-classification",
				InputKinds:  []string{"text"},
				OutputKinds: []string{"classification"},
				RealTime:    true,
				Accuracy:    0.85,
				LatencyMS:   5,
			},
			{
				Name:        "template-resolution",
				InputKinds:  []string{"classification"},
				OutputKinds: []string{"resolution"},
				RealTime:    true,
				Accuracy:    0.8,
				LatencyMS:   2000,
			},
		},
		Status:       api.LifecycleActive,
		ResourceCost: 1.5,
	}
}

// Register adds the automated-resolution engine to f. Every created engine
// shares s.
func (s *Service) Register(f *engine.Factory) error {
	return f.Register(Descriptor(), func(desc api.EngineDescriptor, ref engine.OrchestratorRef) (engine.Engine, error) {
		return &Engine{desc: desc, svc: s, ref: ref}, nil
	})
}

// Engine adapts Service to the engine contract.
type Engine struct {
	desc api.EngineDescriptor
	svc  *Service
	ref  engine.OrchestratorRef
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) Descriptor() api.EngineDescriptor { return e.desc }

func (e *Engine) InputSchema() string { return schema.Source() }

func (e *Engine) Validate(input map[string]any) bool { return schema.Valid(input) }

// Execute resolves the issue in input. The record is failed when the input
// does not decode or ctx ends before the resolution completes.
func (e *Engine) Execute(ctx context.Context, input map[string]any, ectx engine.ExecutionContext) (rec *api.ExecutionRecord) {
	rec = api.NewExecutionRecord(e.desc.ID, ectx.ExecutionID, input)
	defer engine.Recover(rec)

	in, err := decodeInput(input)
	if err != nil {
		rec.Fail(api.CodeInvalidInput, err.Error(), false)
		return rec
	}
	if err := ctx.Err(); err != nil {
		failFromContext(rec, err)
		return rec
	}

	out := e.svc.Resolve(ctx, rec.SessionID, ectx, in)
	rec.Performance.Resources = out.Performance.Resources
	rec.Performance.Cache = out.Performance.Cache
	if err := ctx.Err(); err != nil {
		failFromContext(rec, err)
		return rec
	}
	rec.Complete(out.Result, out.ContextScore)
	return rec
}

func decodeInput(input map[string]any) (Input, error) {
	var in Input
	if err := schema.Validate(input); err != nil {
		return in, err
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return in, fmt.Errorf("encoding input: %w", err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("decoding input: %w", err)
	}
	if strings.TrimSpace(in.Issue.Description) == "" {
		return in, errors.New("issue.description must not be blank")
	}
	return in, nil
}

func failFromContext(rec *api.ExecutionRecord, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		rec.Fail(api.CodeTimeout, "resolution did not finish before the deadline", true)
		return
	}
	rec.Fail(api.CodeCancelled, "resolution cancelled", true)
}
