package hook

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samcharles93/luachat/internal/chat"
	"github.com/samcharles93/luachat/internal/logger"
	"github.com/samcharles93/luachat/internal/reasoning"
)

// DefaultNoopMarker prefixes generated text that must not be evaluated.
const DefaultNoopMarker = "--"

// State is a position of the loop's state machine.
type State int

const (
	AwaitInput State = iota
	Generating
	Evaluating
	Halt
)

func (s State) String() string {
	switch s {
	case AwaitInput:
		return "await_input"
	case Generating:
		return "generating"
	case Evaluating:
		return "evaluating"
	case Halt:
		return "halt"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures a Loop.
type Options struct {
	// NoopMarker defaults to DefaultNoopMarker.
	NoopMarker string
	Sampling   chat.Sampling
	// ToolRole is the role tool results are submitted under. Most model
	// families have no tool role, so it defaults to chat.RoleUser.
	ToolRole chat.Role
	// StripReasoning removes <think> blocks before evaluation.
	StripReasoning bool
	Logger         logger.Logger
}

// Loop is the agent state machine. It is driven from one goroutine; the
// inspection methods are safe to call concurrently.
type Loop struct {
	chat  chat.Context
	eval  Evaluator
	hooks Hooks
	opts  Options
	log   logger.Logger

	next chat.Turn
	text string

	mu sync.Mutex
	// pending is written under mu; the loop goroutine reads it unlocked.
	pending    *string
	state      State
	transcript []chat.Turn
	generated  int
}

// New builds a loop over c. The turns already stored in c are normalized
// once: user turns through NormalizeInput, tool turns through
// FormatToolResult under the tool role.
func New(c chat.Context, eval Evaluator, hooks Hooks, opts Options) (*Loop, error) {
	switch {
	case c == nil:
		return nil, fmt.Errorf("new hook loop: %w", ErrMissingContext)
	case eval == nil:
		return nil, fmt.Errorf("new hook loop: %w", ErrMissingEvaluator)
	case hooks == nil:
		return nil, fmt.Errorf("new hook loop: %w", ErrMissingHooks)
	}
	if opts.NoopMarker == "" {
		opts.NoopMarker = DefaultNoopMarker
	}
	if opts.ToolRole == "" {
		opts.ToolRole = chat.RoleUser
	}

	l := &Loop{
		chat:  c,
		eval:  eval,
		hooks: hooks,
		opts:  opts,
		log:   logger.OrDiscard(opts.Logger).With("strategy", c.Strategy()),
	}
	if err := c.Rewrite(l.normalize); err != nil {
		return nil, fmt.Errorf("normalize initial turns: %w", err)
	}
	l.transcript = c.Turns()
	return l, nil
}

func (l *Loop) normalize(t chat.Turn) chat.Turn {
	switch t.Role {
	case chat.RoleUser:
		t.Message = l.hooks.NormalizeInput(t.Message)
	case chat.RoleTool:
		t = chat.Turn{Role: l.opts.ToolRole, Message: l.hooks.FormatToolResult(t.Message)}
	}
	return t
}

// Run steps the loop until it halts. Errors from the hooks and rejected
// chat requests end the run; engine and script failures do not.
func (l *Loop) Run(ctx context.Context) error {
	for l.State() != Halt {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Step performs one state transition.
func (l *Loop) Step(ctx context.Context) error {
	switch st := l.State(); st {
	case AwaitInput:
		return l.awaitInput(ctx)
	case Generating:
		return l.generate()
	case Evaluating:
		l.evaluate()
		return nil
	case Halt:
		return nil
	default:
		return fmt.Errorf("unknown loop state %s", st)
	}
}

func (l *Loop) awaitInput(ctx context.Context) error {
	if l.pending != nil {
		l.next = chat.Turn{Role: l.opts.ToolRole, Message: *l.pending}
		l.setPending(nil)
		l.setState(Generating)
		return nil
	}

	input, ok, err := l.hooks.ReadInput(ctx)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if !ok {
		l.log.Debug("input exhausted")
		l.setState(Halt)
		return nil
	}
	l.next = chat.Turn{Role: chat.RoleUser, Message: l.hooks.NormalizeInput(input)}
	l.setState(Generating)
	return nil
}

func (l *Loop) generate() error {
	stream, err := l.chat.Chat(chat.Once(l.next), l.opts.Sampling)
	if err != nil {
		return fmt.Errorf("submit turn: %w", err)
	}
	defer stream.Close()
	l.record(l.next)

	if err := l.hooks.OnToken(Token{Kind: Start}); err != nil {
		return fmt.Errorf("token hook: %w", err)
	}
	var turnErr error
	for frag, err := range stream.All() {
		if err != nil {
			turnErr = err
			break
		}
		if err := l.hooks.OnToken(Token{Kind: Chunk, Text: frag}); err != nil {
			return fmt.Errorf("token hook: %w", err)
		}
	}

	// The stream's text is already trimmed of headers and stop markers.
	text := stream.Text()
	if turnErr == nil {
		if committed, ok := l.chat.LastCommitted(); ok {
			text = committed
		}
	}
	l.record(chat.Turn{Role: chat.RoleAssistant, Message: text})
	l.mu.Lock()
	l.generated++
	l.mu.Unlock()

	if err := l.hooks.OnToken(Token{Kind: End, Text: text, Err: turnErr}); err != nil {
		return fmt.Errorf("token hook: %w", err)
	}
	if turnErr != nil {
		l.log.Warn("generation failed", "turn", l.Generated(), "cursor", l.chat.Cursor(), "err", turnErr)
		l.setState(AwaitInput)
		return nil
	}
	l.log.Debug("turn generated", "turn", l.Generated(), "cursor", l.chat.Cursor(), "tokens", stream.Tokens())
	l.text = text
	l.setState(Evaluating)
	return nil
}

func (l *Loop) evaluate() {
	defer l.setState(AwaitInput)

	src := l.text
	if l.opts.StripReasoning {
		src = reasoning.Think.Strip(src)
	}
	trimmed := strings.TrimLeft(src, " \t\r\n")
	if trimmed == "" || strings.HasPrefix(trimmed, l.opts.NoopMarker) {
		l.log.Debug("evaluation skipped", "turn", l.Generated())
		return
	}

	result, present, err := l.safeEval(src)
	switch {
	case err != nil:
		l.log.Info("script failed", "turn", l.Generated(), "err", err)
		content := l.hooks.FormatScriptError(err)
		l.setPending(&content)
	case present:
		content := l.hooks.FormatToolResult(result)
		l.setPending(&content)
	default:
		l.log.Debug("script returned nothing", "turn", l.Generated())
	}
}

func (l *Loop) safeEval(src string) (result string, present bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result, present = "", false
			err = fmt.Errorf("panic in evaluator: %v", rec)
		}
	}()
	return l.eval.Eval(src)
}

func (l *Loop) record(t chat.Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transcript = append(l.transcript, t)
}

func (l *Loop) setPending(p *string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = p
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Transcript returns the initial turns followed by every submitted and
// generated turn.
func (l *Loop) Transcript() []chat.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.transcript)
}

// Generated reports the number of generated turns.
func (l *Loop) Generated() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generated
}

// Pending reports whether a tool result is waiting to be submitted.
func (l *Loop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending != nil
}
