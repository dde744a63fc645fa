package chat

import (
	"errors"
	"slices"

	"github.com/samcharles93/luachat/internal/engine"
)

// Continuous keeps the KV cache warm across turns: each request feeds only
// the new turn, and the system prompt is fed once, before the first turn.
// Generated text is not recorded; callers accumulate it from the stream.
type Continuous struct {
	st     state
	system []Turn
	first  bool
}

var _ Context = (*Continuous)(nil)

// NewContinuous creates a Continuous context over h. The handle is owned by
// the context and closed with it.
func NewContinuous(h engine.Handle, tpl Template, system []Turn, opts Options) *Continuous {
	return &Continuous{
		st:     newState(h, tpl, "continuous", opts),
		system: slices.Clone(system),
		first:  true,
	}
}

func (c *Continuous) Chat(req Request, s Sampling) (*Stream, error) {
	if req.Kind == KindFull {
		return nil, ErrUnsupported
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := c.st.acquire(); err != nil {
		return nil, err
	}

	turns := req.Turns
	if c.first {
		turns = append(slices.Clone(c.system), turns...)
	}
	start := c.st.cursor
	toks, err := c.st.tokenize(c.st.tpl.Encode(turns), start == 0)
	if err == nil {
		err = c.st.feed(toks)
	}
	if err != nil {
		if c.first {
			err = errors.Join(err, c.st.reset())
		}
		return failedStream(&c.st, c, err), nil
	}
	c.first = false
	c.st.log.Debug("turn submitted", "cursor", c.st.cursor, "tokens", c.st.cursor-start, "sampling", s.String())
	return newStream(&c.st, c, s), nil
}

func (c *Continuous) commit(text string, err error) {
	if err != nil {
		c.st.log.Warn("turn failed", "cursor", c.st.cursor, "err", err)
		return
	}
	c.st.log.Debug("turn complete", "cursor", c.st.cursor, "chars", len(text))
}

// Rewrite applies fn to the system prompt. It has no effect on turns already
// fed to the cache.
func (c *Continuous) Rewrite(fn func(Turn) Turn) error {
	if c.st.busy {
		return ErrStreamActive
	}
	for i, t := range c.system {
		c.system[i] = fn(t)
	}
	return nil
}

// LastCommitted always reports false: Continuous keeps no transcript.
func (c *Continuous) LastCommitted() (string, bool) { return "", false }

func (c *Continuous) Turns() []Turn    { return slices.Clone(c.system) }
func (c *Continuous) Strategy() string { return "continuous" }
func (c *Continuous) Cursor() int      { return c.st.cursor }

func (c *Continuous) Close() error { return c.st.h.Close() }
