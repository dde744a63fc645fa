// Package hook drives a chat context as a tool-calling agent: external input
// produces a generated turn, the turn is evaluated as a script, and the
// script's result is fed back as the next turn.
package hook

import (
	"context"
	"errors"
)

var (
	ErrMissingContext   = errors.New("missing chat context")
	ErrMissingEvaluator = errors.New("missing evaluator")
	ErrMissingHooks     = errors.New("missing hooks")
)

// Evaluator runs generated source. present is false when the script
// evaluates to an explicit absence of value.
type Evaluator interface {
	Eval(source string) (result string, present bool, err error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(source string) (string, bool, error)

func (f EvaluatorFunc) Eval(source string) (string, bool, error) { return f(source) }

// Kind is the type of a token event.
type Kind int

const (
	// Start precedes the first fragment of a turn.
	Start Kind = iota
	// Chunk carries one visible fragment.
	Chunk
	// End carries the full text of the turn, and its error if generation
	// failed.
	End
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Chunk:
		return "chunk"
	case End:
		return "end"
	}
	return "unknown"
}

// Token is an observable event of a generated turn.
type Token struct {
	Kind Kind
	Text string
	Err  error
}

// Hooks connects the loop to its input source and output sink and decides
// how content is tagged before it enters the conversation.
type Hooks interface {
	// ReadInput blocks for the next external input. ok=false ends the loop.
	ReadInput(ctx context.Context) (input string, ok bool, err error)
	OnToken(tok Token) error
	NormalizeInput(input string) string
	FormatToolResult(result string) string
	FormatScriptError(err error) string
}

// Funcs implements Hooks with optional functions. Missing transforms are the
// identity, and a missing error formatter uses err.Error().
type Funcs struct {
	Read        func(ctx context.Context) (string, bool, error)
	Token       func(tok Token) error
	Normalize   func(string) string
	ToolResult  func(string) string
	ScriptError func(error) string
}

var _ Hooks = Funcs{}

func (f Funcs) ReadInput(ctx context.Context) (string, bool, error) {
	if f.Read == nil {
		return "", false, nil
	}
	return f.Read(ctx)
}

func (f Funcs) OnToken(tok Token) error {
	if f.Token == nil {
		return nil
	}
	return f.Token(tok)
}

func (f Funcs) NormalizeInput(s string) string {
	if f.Normalize == nil {
		return s
	}
	return f.Normalize(s)
}

func (f Funcs) FormatToolResult(s string) string {
	if f.ToolResult == nil {
		return s
	}
	return f.ToolResult(s)
}

func (f Funcs) FormatScriptError(err error) string {
	if f.ScriptError == nil {
		return err.Error()
	}
	return f.ScriptError(err)
}
