// Package orchestrator runs capability engines against a shared input and
// reduces their outcomes into one OrchestrationResponse.
//
// An orchestration validates the request, picks a dispatch mode, runs each
// engine on a fresh instance from the engine factory, and aggregates the
// terminal records. A caller deadline or explicit cancellation fails every
// engine still running with code timeout or cancelled; records that already
// completed are kept as they are.
//
// Adaptive mode resolves as follows:
//
//   - a single engine runs sequentially;
//   - priority critical always runs in parallel;
//   - otherwise engines run in parallel while the sum of their declared
//     resource costs stays within Config.AdaptiveCostThreshold, and
//     sequentially above it.
package orchestrator
