package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// Logging returns middleware that emits a structured log entry for each
// orchestration: request ID, engines, requested mode, duration, and either
// the overall status and execution ID or the error.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Orchestrator) Orchestrator {
		return OrchestratorFunc(func(ctx context.Context, req *api.OrchestrateRequest) (*api.OrchestrationResponse, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			resp, err := next.Orchestrate(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.Any("engines", req.Engines),
				slog.String("requested_mode", string(req.ExecutionMode)),
				slog.Duration("duration", time.Since(start)),
			}
			if resp != nil {
				attrs = append(attrs,
					slog.String("execution_id", resp.ExecutionID),
					slog.String("mode", string(resp.ExecutionMode)),
					slog.String("status", string(resp.Status)),
				)
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "orchestration failed", attrs...)
			case resp != nil && resp.Status != api.StatusSuccess:
				logger.LogAttrs(ctx, slog.LevelWarn, "orchestration degraded", attrs...)
			default:
				logger.LogAttrs(ctx, slog.LevelInfo, "orchestration completed", attrs...)
			}

			return resp, err
		})
	}
}
