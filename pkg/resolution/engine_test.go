package resolution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
)

func newTestEngine(t *testing.T, f *fakeSinks) engine.Engine {
	t.Helper()
	s := newTestService(t, f, nil, Config{})
	factory := engine.NewFactory()
	require.NoError(t, s.Register(factory))
	e, err := factory.Create(api.EngineAutomatedResolution, factory)
	require.NoError(t, err)
	return e
}

func TestEngineExecute(t *testing.T) {
	e := newTestEngine(t, newFakeSinks())
	input := map[string]any{
		"issue": map[string]any{
			"type":        "payment",
			"description": "payment failed for my ride",
		},
		"customer": map[string]any{
			"id":                "cust-1",
			"preferredLanguage": "en",
		},
	}

	require.True(t, e.Validate(input))
	rec := e.Execute(context.Background(), input, engine.ExecutionContext{ExecutionID: "exec_1"})

	require.Equal(t, api.ExecutionStatusCompleted, rec.Status, "error: %+v", rec.Error)
	assert.Equal(t, api.EngineAutomatedResolution, rec.EngineID)
	assert.Equal(t, "exec_1", rec.ExecutionID)
	assert.NotEmpty(t, rec.SessionID)
	assert.NotNil(t, rec.EndedAt)
	assert.Equal(t, 1, rec.Performance.Cache.Hits)
	assert.Equal(t, 4, rec.Performance.Resources.ActionsExecuted)
	assert.Greater(t, rec.ContextScore, 0.0)

	res, ok := rec.Output.(*Result)
	require.True(t, ok)
	assert.True(t, res.Resolved)
	assert.Equal(t, "payment_failed_transaction", res.TemplateID)
}

func TestEngineExecuteInvalidInput(t *testing.T) {
	e := newTestEngine(t, newFakeSinks())

	tests := []struct {
		name  string
		input map[string]any
	}{
		{"nil input", nil},
		{"missing issue", map[string]any{"customer": map[string]any{}}},
		{"empty description", map[string]any{"issue": map[string]any{"description": ""}}},
		{"blank description", map[string]any{"issue": map[string]any{"description": "   "}}},
		{"wrong type", map[string]any{"issue": "payment failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.Execute(context.Background(), tt.input, engine.ExecutionContext{})
			require.Equal(t, api.ExecutionStatusFailed, rec.Status)
			require.NotNil(t, rec.Error)
			assert.Equal(t, api.CodeInvalidInput, rec.Error.Code)
			assert.False(t, rec.Error.Recoverable)
		})
	}
}

func TestEngineExecuteCancelled(t *testing.T) {
	f := newFakeSinks()
	e := newTestEngine(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := map[string]any{"issue": map[string]any{"description": "payment failed"}}
	rec := e.Execute(ctx, input, engine.ExecutionContext{})

	require.Equal(t, api.ExecutionStatusFailed, rec.Status)
	assert.Equal(t, api.CodeCancelled, rec.Error.Code)
	assert.True(t, rec.Error.Recoverable)
	assert.Empty(t, f.calls)
}

func TestEngineDescriptor(t *testing.T) {
	e := newTestEngine(t, newFakeSinks())
	d := e.Descriptor()

	assert.Equal(t, api.EngineAutomatedResolution, d.ID)
	assert.Equal(t, api.LifecycleActive, d.Status)
	assert.True(t, d.HasCapability("issue-classification"))
	assert.False(t, d.HasCapability(api.CapabilityLanguageProcessing))
	assert.Contains(t, e.InputSchema(), `"description"`)
}
