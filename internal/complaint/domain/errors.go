package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("complaint_not_found")
	ErrInvalidState     = errors.New("invalid_state")
	ErrInvalidID        = errors.New("invalid_complaint_id")
	ErrGenerationFailed = errors.New("generation_failed")
	// ErrResolveInterrupted means the caller went away mid-generation and
	// the complaint was left received for another attempt.
	ErrResolveInterrupted = errors.New("resolve_interrupted")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// GatewayError wraps a payment gateway failure so callers can tell it
// apart from local faults.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
