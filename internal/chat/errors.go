package chat

import "errors"

var (
	// ErrUnsupported is returned for a request the strategy cannot serve,
	// such as a full-history request against a Continuous context.
	ErrUnsupported = errors.New("unsupported request")
	// ErrStreamActive is returned when a context is used while one of its
	// streams is still open.
	ErrStreamActive = errors.New("stream still active")
	// ErrEmptyPrompt is returned when a request carries nothing to decode.
	ErrEmptyPrompt = errors.New("empty prompt")
)
