package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
)

// fakeSpec configures one fake engine type.
type fakeSpec struct {
	typ          api.EngineType
	cost         float64
	capabilities []api.Capability
	score        float64
	fail         bool
	panics       bool
	reject       bool
	ctorErr      error
	delay        time.Duration
	ignoreCtx    bool
	started      *atomic.Int32
	startedAt    *atomic.Int64
}

type fakeEngine struct {
	desc api.EngineDescriptor
	spec fakeSpec
}

func (f *fakeEngine) Descriptor() api.EngineDescriptor { return f.desc }
func (f *fakeEngine) InputSchema() string              { return `{"type":"object"}` }
func (f *fakeEngine) Validate(map[string]any) bool     { return !f.spec.reject }

func (f *fakeEngine) Execute(ctx context.Context, input map[string]any, ectx engine.ExecutionContext) *api.ExecutionRecord {
	if f.spec.started != nil {
		f.spec.started.Add(1)
	}
	if f.spec.startedAt != nil {
		f.spec.startedAt.Store(time.Now().UnixNano())
	}
	rec := api.NewExecutionRecord(f.desc.ID, ectx.ExecutionID, input)
	if f.spec.panics {
		panic("boom")
	}
	if f.spec.delay > 0 {
		if f.spec.ignoreCtx {
			time.Sleep(f.spec.delay)
		} else {
			select {
			case <-time.After(f.spec.delay):
			case <-ctx.Done():
				code := api.CodeCancelled
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					code = api.CodeTimeout
				}
				rec.Fail(code, ctx.Err().Error(), true)
				return rec
			}
		}
	}
	if f.spec.fail {
		rec.Fail(api.CodeEngineError, "engine failed", true)
		return rec
	}
	rec.Performance.Cache.Hits = 1
	rec.Performance.Resources.ActionsExecuted = 2
	rec.Complete(map[string]any{"engine": string(f.desc.ID)}, f.spec.score)
	return rec
}

func newFakeFactory(t *testing.T, specs ...fakeSpec) *engine.Factory {
	t.Helper()
	f := engine.NewFactory()
	for _, s := range specs {
		desc := api.EngineDescriptor{
			ID:           s.typ,
			Name:         string(s.typ),
			Version:      "1.0.0",
			Capabilities: s.capabilities,
			Status:       api.LifecycleActive,
			ResourceCost: s.cost,
		}
		require.NoError(t, f.Register(desc, func(desc api.EngineDescriptor, _ engine.OrchestratorRef) (engine.Engine, error) {
			if s.ctorErr != nil {
				return nil, s.ctorErr
			}
			return &fakeEngine{desc: desc, spec: s}, nil
		}))
	}
	return f
}

func request(mode api.ExecutionMode, engines ...api.EngineType) *api.OrchestrateRequest {
	return &api.OrchestrateRequest{
		Engines:       engines,
		ExecutionMode: mode,
		InputData:     map[string]any{"k": "v"},
	}
}

func timeoutMS(ms int) *int { return &ms }

var languageCapability = []api.Capability{{Name: api.CapabilityLanguageProcessing}}
