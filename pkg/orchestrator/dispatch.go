package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/engine"
)

// runSequential executes engines one after another in request order. Once
// the context is done, engines that never started are failed with the
// context's code.
func (o *Orchestrator) runSequential(ctx context.Context, engines []prepared, input map[string]any, ectx engine.ExecutionContext) []slot {
	slots := make([]slot, len(engines))
	for i, p := range engines {
		if ctx.Err() != nil {
			slots[i] = abandoned(p, ectx.ExecutionID, input, ctx.Err(), "engine not started")
			continue
		}
		slots[i] = o.runOne(ctx, p, input, ectx)
	}
	return slots
}

// runParallel dispatches every engine at once and waits for all of them.
func (o *Orchestrator) runParallel(ctx context.Context, engines []prepared, input map[string]any, ectx engine.ExecutionContext) []slot {
	slots := make([]slot, len(engines))
	var g errgroup.Group
	for i, p := range engines {
		g.Go(func() error {
			slots[i] = o.runOne(ctx, p, input, ectx)
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

// runOne executes a single engine. The engine runs in its own goroutine so
// that a deadline or cancellation is honored even when the engine ignores
// its context; a result arriving after that is discarded.
func (o *Orchestrator) runOne(ctx context.Context, p prepared, input map[string]any, ectx engine.ExecutionContext) slot {
	ctx, span := o.tracer.Start(ctx, "engine "+string(p.typ), trace.WithAttributes(
		attribute.String("steer.engine", string(p.typ)),
	))
	defer span.End()

	start := time.Now()
	if p.err != nil {
		rec := api.NewExecutionRecord(p.typ, ectx.ExecutionID, input)
		rec.Fail(api.CodeConstructionError, p.err.Error(), false)
		span.SetStatus(codes.Error, p.err.Error())
		return slot{typ: p.typ, desc: p.desc, rec: rec, durationMS: millis(time.Since(start))}
	}

	done := make(chan *api.ExecutionRecord, 1)
	go func() {
		done <- execute(ctx, p, input, ectx)
	}()

	var rec *api.ExecutionRecord
	select {
	case rec = <-done:
	case <-ctx.Done():
		rec = abandoned(p, ectx.ExecutionID, input, ctx.Err(), "engine did not finish").rec
		slog.Warn("engine abandoned", "engine", p.typ, "execution_id", ectx.ExecutionID, "reason", ctx.Err())
	}
	if rec == nil {
		rec = api.NewExecutionRecord(p.typ, ectx.ExecutionID, input)
		rec.Fail(api.CodeInternalError, fmt.Sprintf("engine %s returned no record", p.typ), true)
	}
	if !rec.Status.IsTerminal() {
		rec.Fail(api.CodeInternalError, fmt.Sprintf("engine %s returned a non-terminal record", p.typ), true)
	}

	d := time.Since(start)
	span.SetAttributes(
		attribute.String("steer.status", string(rec.Status)),
		attribute.Float64("steer.context_score", rec.ContextScore),
	)
	if !rec.Succeeded() && rec.Error != nil {
		span.SetStatus(codes.Error, rec.Error.Message)
	}
	debug.Log("engine", "engine finished",
		"engine", p.typ,
		"execution_id", ectx.ExecutionID,
		"status", rec.Status,
		"duration", d,
	)
	return slot{typ: p.typ, desc: p.desc, rec: rec, durationMS: millis(d)}
}

// execute calls the engine and converts a panic into a failed record.
func execute(ctx context.Context, p prepared, input map[string]any, ectx engine.ExecutionContext) (rec *api.ExecutionRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("engine panicked", "engine", p.typ, "panic", r)
			rec = api.NewExecutionRecord(p.typ, ectx.ExecutionID, input)
			rec.Fail(api.CodeInternalError, fmt.Sprintf("engine %s panicked: %v", p.typ, r), true)
		}
	}()
	return p.inst.Execute(ctx, input, ectx)
}

// abandoned builds the slot for an engine stopped by its context.
func abandoned(p prepared, execID string, input map[string]any, cause error, msg string) slot {
	rec := api.NewExecutionRecord(p.typ, execID, input)
	code := api.CodeCancelled
	if errors.Is(cause, context.DeadlineExceeded) {
		code = api.CodeTimeout
	}
	rec.Fail(code, fmt.Sprintf("%s: %v", msg, cause), true)
	return slot{typ: p.typ, desc: p.desc, rec: rec}
}
