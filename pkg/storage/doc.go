// Package storage provides utilities shared across execution store
// implementations, including sentinel errors and tenant context helpers.
//
// Stores (memory, postgres, sqlite) implement the transport.ExecutionStore
// interface defined in pkg/transport/handler.go. This package contains
// only shared types and helpers, not the interface itself.
package storage
