package domain

import (
	"context"
	"errors"
)

var (
	ErrEmptyOutput     = errors.New("generator_empty_output")
	ErrUnparseable     = errors.New("generator_output_unparseable")
	ErrMissingField    = errors.New("generator_output_missing_field")
	ErrProviderUnknown = errors.New("responder_provider_unknown")
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Generator returns the raw text produced for a request. The text carries
// no structural guarantee; callers parse it with ParseLetter.
type Generator interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}
