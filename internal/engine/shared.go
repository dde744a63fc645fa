package engine

import (
	"errors"
	"fmt"
	"sync"
)

// Shared is a reference-counted Model. The creator holds the first reference;
// every context created through it holds another until it is closed. The
// underlying model is closed when the last reference is released.
type Shared struct {
	mu    sync.Mutex
	model Model
	refs  int
}

// Share wraps m. The returned value holds one reference, released by Close.
func Share(m Model) *Shared {
	return &Shared{model: m, refs: 1}
}

// NewContext creates a decode context that keeps the model alive until the
// returned handle is closed.
func (s *Shared) NewContext(opts ContextOptions) (Handle, error) {
	if err := s.Acquire(); err != nil {
		return nil, err
	}
	h, err := s.model.NewContext(opts)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("new context: %w", err), s.Release())
	}
	return &sharedHandle{Handle: h, owner: s}, nil
}

// Acquire adds a reference.
func (s *Shared) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return ErrClosed
	}
	s.refs++
	return nil
}

// Release drops a reference and closes the model when none remain.
func (s *Shared) Release() error {
	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return ErrClosed
	}
	s.refs--
	last := s.refs == 0
	s.mu.Unlock()
	if last {
		return s.model.Close()
	}
	return nil
}

// Refs reports the number of live references.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Close releases the creator's reference.
func (s *Shared) Close() error { return s.Release() }

type sharedHandle struct {
	Handle
	owner *Shared
	once  sync.Once
}

func (h *sharedHandle) Close() error {
	var err error
	h.once.Do(func() {
		err = errors.Join(h.Handle.Close(), h.owner.Release())
	})
	return err
}
