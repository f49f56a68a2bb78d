// Package idempotency records completed side-effecting actions by key so
// that a repeated resolution does not refund or escalate twice.
//
// Only completed calls are remembered. A call that failed leaves no trace
// and the next attempt with the same key runs again.
package idempotency
