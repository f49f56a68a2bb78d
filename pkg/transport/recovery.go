package transport

import (
	"context"
	"fmt"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error responses. The server continues to
// accept new requests after a panic is recovered.
func Recovery() Middleware {
	return func(next Orchestrator) Orchestrator {
		return OrchestratorFunc(func(ctx context.Context, req *api.OrchestrateRequest) (resp *api.OrchestrationResponse, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					resp = nil
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Orchestrate(ctx, req)
		})
	}
}
