// Package server exposes one hook loop session over HTTP.
package server

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/hook"
	"github.com/samcharles93/luachat/internal/logger"
)

var (
	ErrBusy   = errors.New("exchange in progress")
	ErrClosed = errors.New("session closed")
)

// SessionConfig configures a Session.
type SessionConfig struct {
	Chat      chat.Context
	Evaluator hook.Evaluator
	Loop      hook.Options
	// Format supplies NormalizeInput, FormatToolResult and FormatScriptError.
	// Its Read and Token functions are ignored.
	Format   hook.Funcs
	Template string
	Logger   logger.Logger
}

// Info describes a session.
type Info struct {
	ID        string `json:"id"`
	Strategy  string `json:"strategy"`
	Template  string `json:"template"`
	State     string `json:"state"`
	Generated int    `json:"generated"`
	// Pending is set while a tool result waits to be submitted.
	Pending   bool   `json:"pending"`
}

type exchange struct {
	id     string
	input  string
	events chan hook.Token
}

// Session runs a hook loop on its own goroutine. Inputs arrive through
// Submit; each exchange collects the token events of every turn generated
// before the loop asks for input again.
type Session struct {
	id       string
	template string
	chat     chat.Context
	loop     *hook.Loop
	format   hook.Funcs
	log      logger.Logger

	inputs chan *exchange
	done   chan struct{}

	mu      sync.Mutex
	current *exchange
	busy    bool
	runErr  error
}

// NewSession builds the session and its loop. Start must be called before
// Submit.
func NewSession(cfg SessionConfig) (*Session, error) {
	s := &Session{
		id:       uuid.NewString(),
		template: cfg.Template,
		chat:     cfg.Chat,
		format:   cfg.Format,
		inputs:   make(chan *exchange),
		done:     make(chan struct{}),
	}
	s.log = logger.OrDiscard(cfg.Logger).With("session", s.id)
	opts := cfg.Loop
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	loop, err := hook.New(cfg.Chat, cfg.Evaluator, s, opts)
	if err != nil {
		return nil, err
	}
	s.loop = loop
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Start runs the loop until ctx is cancelled or the loop fails.
func (s *Session) Start(ctx context.Context) {
	go func() {
		err := s.loop.Run(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		s.mu.Lock()
		s.runErr = err
		s.endExchangeLocked()
		s.mu.Unlock()
		close(s.done)
		if err != nil {
			s.log.Error("session loop stopped", "err", err)
			return
		}
		s.log.Info("session loop stopped")
	}()
}

// Done is closed once the loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that stopped the loop.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Submit hands input to the loop. The returned channel yields the token
// events of the exchange and is closed when the loop asks for input again.
// Callers must drain it.
func (s *Session) Submit(ctx context.Context, input string) (string, <-chan hook.Token, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return "", nil, ErrBusy
	}
	s.busy = true
	s.mu.Unlock()

	ex := &exchange{
		id:     uuid.NewString(),
		input:  input,
		events: make(chan hook.Token, 64),
	}
	select {
	case s.inputs <- ex:
		return ex.id, ex.events, nil
	case <-s.done:
		s.release()
		return "", nil, ErrClosed
	case <-ctx.Done():
		s.release()
		return "", nil, ctx.Err()
	}
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// endExchangeLocked closes the events of the running exchange.
func (s *Session) endExchangeLocked() {
	if s.current == nil {
		return
	}
	close(s.current.events)
	s.log.Debug("exchange done", "exchange", s.current.id, "turn", s.loop.Generated())
	s.current = nil
	s.busy = false
}

func (s *Session) ReadInput(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	s.endExchangeLocked()
	s.mu.Unlock()

	select {
	case ex := <-s.inputs:
		s.mu.Lock()
		s.current = ex
		s.mu.Unlock()
		s.log.Debug("exchange started", "exchange", ex.id)
		return ex.input, true, nil
	case <-ctx.Done():
		return "", false, nil
	}
}

// OnToken is called from the loop goroutine only, which is also the only
// writer of current, so the send happens without the lock held.
func (s *Session) OnToken(tok hook.Token) error {
	s.mu.Lock()
	ex := s.current
	s.mu.Unlock()
	if ex != nil {
		ex.events <- tok
	}
	return nil
}

func (s *Session) NormalizeInput(input string) string { return s.format.NormalizeInput(input) }
func (s *Session) FormatToolResult(r string) string   { return s.format.FormatToolResult(r) }
func (s *Session) FormatScriptError(err error) string { return s.format.FormatScriptError(err) }

// Transcript returns the turns of the session so far.
func (s *Session) Transcript() []chat.Turn { return s.loop.Transcript() }

// Info reports the session state.
func (s *Session) Info() Info {
	return Info{
		ID:        s.id,
		Strategy:  s.chat.Strategy(),
		Template:  s.template,
		State:     s.loop.State().String(),
		Generated: s.loop.Generated(),
		Pending:   s.loop.Pending(),
	}
}
