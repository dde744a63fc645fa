package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenization reports text the backend could not tokenize.
	ErrTokenization = errors.New("tokenization failed")
	// ErrDecode reports a failed decode, such as an exhausted context.
	ErrDecode = errors.New("decode failed")
	// ErrClosed is returned when a released model is used again.
	ErrClosed = errors.New("model closed")
)

// DecodeError describes a decode failure at a KV cache position.
type DecodeError struct {
	Pos    int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode at position %d: %s", e.Pos, e.Reason)
}

func (e *DecodeError) Unwrap() error { return ErrDecode }
