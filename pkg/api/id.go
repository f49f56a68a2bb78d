package api

import (
	"strings"

	"github.com/google/uuid"
)

const (
	executionIDPrefix = "exec_"
	sessionIDPrefix   = "sess_"
)

// NewExecutionID generates a new orchestration execution ID with the "exec_"
// prefix followed by a random UUID.
func NewExecutionID() string {
	return executionIDPrefix + uuid.NewString()
}

// NewSessionID generates a new engine session ID with the "sess_" prefix.
// Each call to an engine's Execute gets its own session.
func NewSessionID() string {
	return sessionIDPrefix + uuid.NewString()
}

// ValidateExecutionID checks whether the given string is a valid execution ID.
func ValidateExecutionID(id string) bool {
	return validatePrefixed(id, executionIDPrefix)
}

// ValidateSessionID checks whether the given string is a valid session ID.
func ValidateSessionID(id string) bool {
	return validatePrefixed(id, sessionIDPrefix)
}

func validatePrefixed(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil && len(rest) == 36
}
