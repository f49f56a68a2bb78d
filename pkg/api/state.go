package api

import "fmt"

// ValidateExecutionTransition checks whether an execution status transition
// is valid. An empty "from" status represents a record that has not started.
// Terminal states (completed, failed) do not allow outgoing transitions.
func ValidateExecutionTransition(from, to ExecutionStatus) *APIError {
	valid := map[ExecutionStatus][]ExecutionStatus{
		"":                     {ExecutionStatusRunning},
		ExecutionStatusRunning: {ExecutionStatusCompleted, ExecutionStatusFailed},
	}

	allowed, exists := valid[from]
	if !exists {
		return NewInvalidRequestError("status",
			fmt.Sprintf("invalid transition from %s to %s", from, to))
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
