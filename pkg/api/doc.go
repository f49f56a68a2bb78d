// Package api defines the core types of the engine orchestration service.
//
// This package provides the data types shared by the orchestrator, the
// capability engines and the transport layer: engine descriptors, execution
// records, orchestration requests and responses, customer and cultural
// context, error types, state transition validation, and ID generation.
//
// The package performs no I/O. Wire types use camelCase JSON field names.
//
// Core types:
//   - [EngineDescriptor]: Static metadata describing a capability engine
//   - [ExecutionRecord]: One engine invocation, from start to terminal state
//   - [OrchestrateRequest]: Client request naming the engines to run
//   - [OrchestrationResponse]: Aggregated result across all requested engines
//   - [APIError]: Structured error with type, code, param, and message
package api
