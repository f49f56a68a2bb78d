package cultural

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/language"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
)

const inputSchema = `{
  "type": "object",
  "properties": {
    "culturalContext": {
      "type": "object",
      "properties": {
        "language": {"type": "string"},
        "region": {"type": "string"},
        "festival": {"type": "string"},
        "situation": {"enum": ["", "festival_period", "monsoon", "peak_hours"]},
        "communicationStyle": {"type": "string"}
      }
    }
  }
}`

var schema = engine.MustCompileSchema(string(api.EngineCulturalContext), inputSchema)

// Score weights. They sum to 1.
const (
	weightLanguage  = 0.4
	weightRegion    = 0.3
	weightSituation = 0.2
	weightStyle     = 0.1
)

var greetings = map[string]string{
	"en": "Hello",
	"ml": "നമസ്കാരം",
	"hi": "नमस्ते",
	"ta": "வணக்கம்",
}

var knownRegions = map[string]bool{
	"kerala":             true,
	"thiruvananthapuram": true,
	"trivandrum":         true,
	"kollam":             true,
	"alappuzha":          true,
	"kottayam":           true,
	"idukki":             true,
	"ernakulam":          true,
	"kochi":              true,
	"thrissur":           true,
	"palakkad":           true,
	"malappuram":         true,
	"kozhikode":          true,
	"wayanad":            true,
	"kannur":             true,
	"kasaragod":          true,
	"tamil nadu":         true,
	"karnataka":          true,
	"north india":        true,
}

// Output is the engine's result.
type Output struct {
	Language           string        `json:"language"`
	Region             string        `json:"region,omitempty"`
	KnownRegion        bool          `json:"knownRegion"`
	Greeting           string        `json:"greeting"`
	Situation          api.Situation `json:"situation,omitempty"`
	CommunicationStyle string        `json:"communicationStyle,omitempty"`
	Alignment          float64       `json:"alignment"`
	Missing            []string      `json:"missing,omitempty"`
}

// Descriptor returns the cultural-context engine descriptor.
func Descriptor() api.EngineDescriptor {
	return api.EngineDescriptor{
		ID:      api.EngineCulturalContext,
		Name:    "Cultural Context",
		Version: "1.0.0",
		Capabilities: []api.Capability{
			{
				Name:        api.CapabilityLanguageProcessing,
				InputKinds:  []string{"cultural-context"},
				OutputKinds: []string{"cultural-profile"},
				RealTime:    true,
				Accuracy:    0.9,
				LatencyMS:   1,
			},
		},
		Status:       api.LifecycleActive,
		ResourceCost: 0.3,
	}
}

// Register adds the cultural-context engine to f.
func Register(f *engine.Factory) error {
	return f.Register(Descriptor(), func(desc api.EngineDescriptor, _ engine.OrchestratorRef) (engine.Engine, error) {
		return &Engine{desc: desc}, nil
	})
}

// Engine scores cultural context completeness.
type Engine struct {
	desc api.EngineDescriptor
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) Descriptor() api.EngineDescriptor { return e.desc }

func (e *Engine) InputSchema() string { return schema.Source() }

func (e *Engine) Validate(input map[string]any) bool { return schema.Valid(input) }

// Execute scores the orchestration's cultural context. A culturalContext
// object inside input overrides individual fields.
func (e *Engine) Execute(ctx context.Context, input map[string]any, ectx engine.ExecutionContext) (rec *api.ExecutionRecord) {
	rec = api.NewExecutionRecord(e.desc.ID, ectx.ExecutionID, input)
	defer engine.Recover(rec)

	if err := schema.Validate(input); err != nil {
		rec.Fail(api.CodeInvalidInput, err.Error(), false)
		return rec
	}
	if err := ctx.Err(); err != nil {
		code := api.CodeCancelled
		if errors.Is(err, context.DeadlineExceeded) {
			code = api.CodeTimeout
		}
		rec.Fail(code, err.Error(), true)
		return rec
	}

	cc := merge(ectx.Cultural, input)
	out := Analyze(cc)
	debug.Log("engine", "cultural context scored",
		"session_id", rec.SessionID,
		"language", out.Language,
		"alignment", out.Alignment,
	)
	rec.Complete(out, out.Alignment)
	return rec
}

// Analyze scores a cultural context.
func Analyze(cc api.CulturalContext) Output {
	out := Output{
		Language:           "en",
		Region:             strings.TrimSpace(cc.Region),
		Situation:          cc.ActiveSituation(),
		CommunicationStyle: strings.TrimSpace(cc.CommunicationStyle),
	}

	if lang, ok := supportedLanguage(cc.Language); ok {
		out.Language = lang
		out.Alignment += weightLanguage
	} else {
		out.Missing = append(out.Missing, "language")
	}
	if knownRegions[strings.ToLower(out.Region)] {
		out.KnownRegion = true
		out.Alignment += weightRegion
	} else {
		out.Missing = append(out.Missing, "region")
	}
	if out.Situation != api.SituationNone {
		out.Alignment += weightSituation
	} else {
		out.Missing = append(out.Missing, "situation")
	}
	if out.CommunicationStyle != "" {
		out.Alignment += weightStyle
	} else {
		out.Missing = append(out.Missing, "communicationStyle")
	}
	out.Alignment = min(out.Alignment, 1)
	out.Greeting = greetings[out.Language]
	return out
}

func supportedLanguage(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	lang := base.String()
	_, ok := greetings[lang]
	return lang, ok
}

func merge(cc api.CulturalContext, input map[string]any) api.CulturalContext {
	raw, ok := input["culturalContext"].(map[string]any)
	if !ok {
		return cc
	}
	set := func(dst *string, key string) {
		if v, ok := raw[key].(string); ok && v != "" {
			*dst = v
		}
	}
	set(&cc.Language, "language")
	set(&cc.Region, "region")
	set(&cc.Festival, "festival")
	set(&cc.CommunicationStyle, "communicationStyle")
	if v, ok := raw["situation"].(string); ok && v != "" {
		cc.Situation = api.Situation(v)
	}
	return cc
}
