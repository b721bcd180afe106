package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrCircuitOpen indicates a circuit breaker rejected the call without
	// attempting it because the wrapped service is currently considered down.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrRateLimitExceeded indicates a rate-limited call gave up waiting for
	// a token within its configured wait cap.
	ErrRateLimitExceeded = errors.New("rate limit wait cap exceeded")

	// ErrMissingLocation indicates an EnrichedAlert failed the location
	// invariant: neither (lat, lon) nor country was populated.
	ErrMissingLocation = errors.New("alert has no location")

	// ErrNonNumericScore indicates an enrichment response carried a
	// score/confidence value storage could not parse as a float.
	ErrNonNumericScore = errors.New("non-numeric score or confidence")

	// ErrScoreOutOfRange indicates an EnrichedAlert's score or confidence
	// fell outside the bounds invariant 6 requires (score 0-100, confidence
	// 0-1) before it ever reached storage.
	ErrScoreOutOfRange = errors.New("score or confidence out of range")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
