package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/observability"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/storage"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/transport"
)

const tracerName = "github.com/kylasweb/AI-IVR-v2-sub003/pkg/orchestrator"

// Config holds orchestrator tuning.
type Config struct {
	// DefaultMode applies when a request names no execution mode.
	DefaultMode api.ExecutionMode

	// DefaultTimeout bounds orchestrations that carry no timeout of their
	// own. Zero means no deadline.
	DefaultTimeout time.Duration

	// AdaptiveCostThreshold is the summed resource cost up to which
	// adaptive mode runs engines in parallel.
	AdaptiveCostThreshold float64

	Validation api.ValidationConfig

	// PersistTimeout bounds the write of the finished record.
	PersistTimeout time.Duration
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMode:           api.ModeAdaptive,
		AdaptiveCostThreshold: DefaultAdaptiveCostThreshold,
		Validation:            api.DefaultValidationConfig(),
		PersistTimeout:        5 * time.Second,
	}
}

// Orchestrator coordinates capability engines. It is safe for concurrent use.
type Orchestrator struct {
	factory  *engine.Factory
	store    transport.ExecutionStore
	cfg      Config
	inflight *transport.InFlightRegistry
	perf     *PerformanceAggregator
	tracer   trace.Tracer
}

// New creates an orchestrator over the given factory. store may be nil, in
// which case finished orchestrations are not persisted.
func New(factory *engine.Factory, store transport.ExecutionStore, cfg Config) *Orchestrator {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = api.ModeAdaptive
	}
	if cfg.AdaptiveCostThreshold <= 0 {
		cfg.AdaptiveCostThreshold = DefaultAdaptiveCostThreshold
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	return &Orchestrator{
		factory:  factory,
		store:    store,
		cfg:      cfg,
		inflight: transport.NewInFlightRegistry(),
		perf:     NewPerformanceAggregator(),
		tracer:   otel.Tracer(tracerName),
	}
}

var (
	_ transport.Orchestrator     = (*Orchestrator)(nil)
	_ transport.ExecutionTracker = (*Orchestrator)(nil)
	_ transport.EngineCatalog    = (*Orchestrator)(nil)
	_ engine.OrchestratorRef     = (*Orchestrator)(nil)
)

// Descriptor implements engine.OrchestratorRef.
func (o *Orchestrator) Descriptor(typ api.EngineType) (api.EngineDescriptor, bool) {
	return o.factory.Descriptor(typ)
}

// EngineTypes implements engine.OrchestratorRef.
func (o *Orchestrator) EngineTypes() []api.EngineType {
	return o.factory.EngineTypes()
}

// Orchestrate validates req, runs the requested engines, and aggregates their
// outcomes. A validation failure returns a failed response together with an
// *api.APIError and runs nothing. Engine failures never produce an error;
// they are reported per engine in the response.
func (o *Orchestrator) Orchestrate(ctx context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error) {
	start := time.Now()
	resp := newResponse(api.NewExecutionID(), start)

	engines, apiErr := o.prepare(req)
	if apiErr != nil {
		resp.Status = api.StatusFailed
		if req != nil {
			resp.ExecutionMode = req.ExecutionMode
		}
		resp.Errors = map[string]api.ErrorDetail{
			api.ErrorKeyValidation: {Code: api.CodeInvalidInput, Message: apiErr.Message},
		}
		resp.TotalDurationMS = millis(time.Since(start))
		observability.OrchestrationsTotal.WithLabelValues(string(modeLabel(resp.ExecutionMode)), "invalid").Inc()
		debug.Log("orchestrator", "request rejected", "execution_id", resp.ExecutionID, "param", apiErr.Param, "reason", apiErr.Message)
		return resp, apiErr
	}

	descs := make([]api.EngineDescriptor, len(engines))
	for i, e := range engines {
		descs[i] = e.desc
	}
	mode := ResolveMode(req.ExecutionMode, o.cfg.DefaultMode, req.Priority, descs, o.cfg.AdaptiveCostThreshold)
	resp.ExecutionMode = mode

	ctx, span := o.tracer.Start(ctx, "orchestrate", trace.WithAttributes(
		attribute.String("steer.execution_id", resp.ExecutionID),
		attribute.String("steer.mode", string(mode)),
		attribute.Int("steer.engines", len(engines)),
	))
	defer span.End()

	runCtx, cancel := o.withDeadline(ctx, req)
	defer cancel()

	o.inflight.Register(transport.ActiveExecution{
		ID:        resp.ExecutionID,
		Engines:   req.Engines,
		Mode:      mode,
		Priority:  req.Priority,
		StartedAt: start,
	}, cancel)
	observability.ActiveExecutions.Inc()

	debug.Log("orchestrator", "dispatching",
		"execution_id", resp.ExecutionID,
		"mode", mode,
		"engines", req.Engines,
	)

	ectx := engine.ExecutionContext{
		ExecutionID: resp.ExecutionID,
		Priority:    req.Priority,
		Cultural:    req.CulturalContext,
	}
	var slots []slot
	if mode == api.ModeParallel {
		slots = o.runParallel(runCtx, engines, req.InputData, ectx)
	} else {
		slots = o.runSequential(runCtx, engines, req.InputData, ectx)
	}

	aggregate(resp, slots)
	resp.TotalDurationMS = millis(time.Since(start))

	o.record(resp, slots)
	o.persist(ctx, req, resp, slots)

	o.inflight.Remove(resp.ExecutionID)
	observability.ActiveExecutions.Dec()

	span.SetAttributes(
		attribute.String("steer.status", string(resp.Status)),
		attribute.Float64("steer.alignment", resp.AlignmentScore),
	)
	if resp.Status == api.StatusFailed {
		span.SetStatus(codes.Error, "no engine succeeded")
	}
	return resp, nil
}

// prepared is a validated engine instance ready to run.
type prepared struct {
	typ  api.EngineType
	desc api.EngineDescriptor
	inst engine.Engine
	err  error
}

// prepare validates the request and creates one engine instance per slot.
// Instances that fail to construct for reasons other than being unknown or
// disabled keep their slot and fail at dispatch.
func (o *Orchestrator) prepare(req *api.OrchestrateRequest) ([]prepared, *api.APIError) {
	if req == nil {
		return nil, api.NewInvalidRequestError("", "request body is required")
	}
	if apiErr := api.ValidateOrchestrateRequest(req, o.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}

	out := make([]prepared, 0, len(req.Engines))
	for _, typ := range req.Engines {
		desc, ok := o.factory.Descriptor(typ)
		if !ok {
			return nil, api.NewInvalidRequestError("engines", fmt.Sprintf("unknown engine type %q", typ))
		}
		inst, err := o.factory.Create(typ, o)
		switch {
		case errors.Is(err, engine.ErrUnknownEngine):
			return nil, api.NewInvalidRequestError("engines", fmt.Sprintf("unknown engine type %q", typ))
		case errors.Is(err, engine.ErrEngineDisabled):
			return nil, api.NewInvalidRequestError("engines", fmt.Sprintf("engine %s is disabled", typ))
		case err != nil:
			slog.Warn("engine construction failed", "engine", typ, "error", err)
		default:
			if !inst.Validate(req.InputData) {
				return nil, api.NewInvalidRequestError("inputData", fmt.Sprintf("inputData rejected by engine %s", typ))
			}
		}
		out = append(out, prepared{typ: typ, desc: desc, inst: inst, err: err})
	}
	return out, nil
}

func (o *Orchestrator) withDeadline(ctx context.Context, req *api.OrchestrateRequest) (context.Context, context.CancelFunc) {
	timeout := o.cfg.DefaultTimeout
	if req.Timeout != nil && *req.Timeout > 0 {
		timeout = time.Duration(*req.Timeout) * time.Millisecond
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// record feeds the performance aggregator and Prometheus.
func (o *Orchestrator) record(resp *api.OrchestrationResponse, slots []slot) {
	observability.OrchestrationsTotal.WithLabelValues(string(resp.ExecutionMode), string(resp.Status)).Inc()
	for _, s := range slots {
		observability.EngineExecutionsTotal.WithLabelValues(string(s.typ), string(s.rec.Status)).Inc()
		observability.EngineDuration.WithLabelValues(string(s.typ)).Observe(s.durationMS / 1000)
	}
	o.perf.Record(resp, slots)
}

// persist writes the finished orchestration. Failures are logged and do not
// change the response.
func (o *Orchestrator) persist(ctx context.Context, req *api.OrchestrateRequest, resp *api.OrchestrationResponse, slots []slot) {
	if o.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.PersistTimeout)
	defer cancel()

	execs := make([]*api.ExecutionRecord, len(slots))
	for i, s := range slots {
		execs[i] = s.rec
	}
	rec := &api.OrchestrationRecord{
		Response:   resp,
		Request:    req,
		Executions: execs,
		TenantID:   storage.GetTenant(ctx),
		CreatedAt:  resp.Timestamp,
	}
	if err := o.store.SaveExecution(ctx, rec); err != nil {
		slog.Error("persisting orchestration failed", "execution_id", resp.ExecutionID, "error", err)
		return
	}
	debug.Log("storage", "orchestration persisted", "execution_id", resp.ExecutionID)
}

// Lookup implements transport.ExecutionTracker.
func (o *Orchestrator) Lookup(ctx context.Context, id string) (*api.OrchestrationRecord, error) {
	if info, ok := o.inflight.Get(id); ok {
		return &api.OrchestrationRecord{
			Response: &api.OrchestrationResponse{
				ExecutionID:   info.ID,
				Status:        api.StatusRunning,
				ExecutionMode: info.Mode,
				Timestamp:     info.StartedAt,
			},
			Request:   &api.OrchestrateRequest{Engines: info.Engines, Priority: info.Priority},
			CreatedAt: info.StartedAt,
		}, nil
	}
	if o.store == nil {
		return nil, storage.ErrNotFound
	}
	return o.store.GetExecution(ctx, id)
}

// Cancel implements transport.ExecutionTracker.
func (o *Orchestrator) Cancel(id string) bool {
	ok := o.inflight.Cancel(id)
	if ok {
		slog.Info("orchestration cancelled", "execution_id", id)
	}
	return ok
}

// Active lists running orchestrations, oldest first.
func (o *Orchestrator) Active() []transport.ActiveExecution {
	return o.inflight.List()
}

// Engines implements transport.EngineCatalog.
func (o *Orchestrator) Engines() []api.EngineInfo {
	descs := o.factory.Descriptors()
	out := make([]api.EngineInfo, 0, len(descs))
	for _, d := range descs {
		info := api.EngineInfo{EngineDescriptor: d}
		if inst, err := o.factory.Create(d.ID, o); err == nil {
			info.InputSchema = []byte(inst.InputSchema())
		}
		out = append(out, info)
	}
	return out
}

// Performance implements transport.EngineCatalog.
func (o *Orchestrator) Performance() api.PerformanceSnapshot {
	return o.perf.Snapshot()
}

func newResponse(id string, now time.Time) *api.OrchestrationResponse {
	return &api.OrchestrationResponse{
		ExecutionID:     id,
		Results:         make(map[api.EngineType]any),
		Performance:     make(map[api.EngineType]api.EnginePerformance),
		Recommendations: []string{},
		Timestamp:       now.UTC(),
		Errors:          make(map[string]api.ErrorDetail),
	}
}

func modeLabel(m api.ExecutionMode) api.ExecutionMode {
	if m == "" {
		return "default"
	}
	return m
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
