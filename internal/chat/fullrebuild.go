package chat

import (
	"slices"

	"github.com/samcharles93/luachat/internal/engine"
)

// FullRebuild resends the complete transcript on every turn, starting from
// an empty KV cache. Each completed generation is appended to the history
// as an assistant turn.
type FullRebuild struct {
	st      state
	history []Turn
}

var _ Context = (*FullRebuild)(nil)

// NewFullRebuild creates a FullRebuild context over h seeded with history.
// The handle is owned by the context and closed with it.
func NewFullRebuild(h engine.Handle, tpl Template, history []Turn, opts Options) *FullRebuild {
	return &FullRebuild{
		st:      newState(h, tpl, "full", opts),
		history: slices.Clone(history),
	}
}

func (f *FullRebuild) Chat(req Request, s Sampling) (*Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := f.st.acquire(); err != nil {
		return nil, err
	}

	if req.Kind == KindFull {
		f.history = slices.Clone(req.Turns)
	} else {
		f.history = append(f.history, req.Turns[0])
	}

	err := f.st.reset()
	var toks []engine.Token
	if err == nil {
		toks, err = f.st.tokenize(f.st.tpl.Encode(f.history), true)
	}
	if err == nil {
		err = f.st.feed(toks)
	}
	if err != nil {
		return failedStream(&f.st, f, err), nil
	}
	f.st.log.Debug("history submitted", "turns", len(f.history), "cursor", f.st.cursor, "sampling", s.String())
	return newStream(&f.st, f, s), nil
}

// commit records the generated turn. A failed turn is recorded with the
// error message so the transcript shows what happened.
func (f *FullRebuild) commit(text string, err error) {
	if err != nil {
		f.st.log.Warn("turn failed", "cursor", f.st.cursor, "err", err)
		if text != "" {
			text += "\n"
		}
		text += err.Error()
	}
	f.history = append(f.history, Turn{Role: RoleAssistant, Message: text})
	f.st.log.Debug("turn committed", "turns", len(f.history), "cursor", f.st.cursor)
}

func (f *FullRebuild) Rewrite(fn func(Turn) Turn) error {
	if f.st.busy {
		return ErrStreamActive
	}
	for i, t := range f.history {
		f.history[i] = fn(t)
	}
	return nil
}

// LastCommitted returns the last assistant message of the history.
func (f *FullRebuild) LastCommitted() (string, bool) {
	if n := len(f.history); n > 0 && f.history[n-1].Role == RoleAssistant {
		return f.history[n-1].Message, true
	}
	return "", false
}

func (f *FullRebuild) Turns() []Turn    { return slices.Clone(f.history) }
func (f *FullRebuild) Strategy() string { return "full" }
func (f *FullRebuild) Cursor() int      { return f.st.cursor }

func (f *FullRebuild) Close() error { return f.st.h.Close() }
