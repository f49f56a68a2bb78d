// Package engine defines the capability engine contract and the factory that
// constructs engines by type.
//
// An Engine is a named, versioned unit of work that accepts the shared input
// of an orchestration and produces an ExecutionRecord. Engines never raise
// past their Execute boundary: every outcome, including panics and invalid
// input, is reported as a terminal record. Engines reach the rest of the
// system only through the OrchestratorRef they were constructed with.
package engine
