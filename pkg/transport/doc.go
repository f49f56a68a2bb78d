// Package transport defines the handler interfaces and middleware chain for
// the steer HTTP transport layer.
//
// The transport layer bridges external clients and the orchestrator. It
// decodes incoming requests into the types defined in pkg/api, dispatches
// them for processing, and serializes responses back to the client.
//
// # Handler Interfaces
//
//   - Orchestrator runs one orchestration request to completion.
//   - ExecutionStore persists finished orchestration records for status
//     lookups and listing. It is optional; without it only in-flight
//     executions can be inspected.
//   - ExecutionTracker answers status lookups and cancellations, combining
//     the in-flight registry with the store.
//
// # Middleware
//
// The middleware chain wraps Orchestrator with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog. RateLimiter is an
// HTTP-level middleware that throttles callers per client address.
package transport
