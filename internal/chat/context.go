package chat

import (
	"errors"
	"fmt"

	"github.com/samcharles93/luachat/internal/engine"
	"github.com/samcharles93/luachat/internal/logger"
)

// Context is a conversation bound to one engine handle. At most one Stream
// may be open at a time.
type Context interface {
	// Chat submits req and returns the stream of the generated reply.
	// Engine failures during submission surface as the stream's terminal
	// error; Chat itself only fails for requests it rejects outright.
	Chat(req Request, s Sampling) (*Stream, error)
	// Rewrite replaces every stored turn with fn(turn).
	Rewrite(fn func(Turn) Turn) error
	// LastCommitted returns the committed text of the last generated turn
	// when the strategy records one.
	LastCommitted() (string, bool)
	// Turns returns a copy of the stored turns.
	Turns() []Turn
	Strategy() string
	// Cursor is the number of tokens held in the KV cache.
	Cursor() int
	Close() error
}

// Options configures a Context.
type Options struct {
	Logger logger.Logger
	// Seq is the KV cache sequence the context decodes into.
	Seq engine.SeqID
}

// state is the decode state shared by both strategies.
type state struct {
	h     engine.Handle
	tpl   Template
	batch *engine.Batch
	seqs  []engine.SeqID
	log   logger.Logger

	cursor int
	busy   bool
}

func newState(h engine.Handle, tpl Template, strategy string, opts Options) state {
	return state{
		h:     h,
		tpl:   tpl,
		batch: engine.NewBatch(h.BatchCapacity()),
		seqs:  []engine.SeqID{opts.Seq},
		log:   logger.OrDiscard(opts.Logger).With("strategy", strategy),
	}
}

func (s *state) tokenize(text string, addBOS bool) ([]engine.Token, error) {
	toks, err := engine.GuardValue(engine.ErrTokenization, "tokenize", func() ([]engine.Token, error) {
		return s.h.Tokenize(text, addBOS)
	})
	if err != nil && !errors.Is(err, engine.ErrTokenization) {
		err = fmt.Errorf("%w: %w", engine.ErrTokenization, err)
	}
	return toks, err
}

// decode submits the batch. On failure the batch entries are taken back off
// the cursor, since none of them reached the KV cache.
func (s *state) decode() error {
	err := engine.Guard(engine.ErrDecode, "decode", func() error {
		return s.h.Decode(s.batch)
	})
	if err == nil {
		return nil
	}
	s.cursor -= s.batch.Len()
	s.batch.Clear()
	if !errors.Is(err, engine.ErrDecode) {
		err = fmt.Errorf("%w: %w", engine.ErrDecode, err)
	}
	return err
}

// feed appends toks at the cursor. A full batch is decoded and cleared before
// more tokens are added; the final chunk stays in the batch with logits
// requested for its last entry, for the stream's first step to decode.
func (s *state) feed(toks []engine.Token) error {
	if len(toks) == 0 {
		return ErrEmptyPrompt
	}
	s.batch.Clear()
	for i, tok := range toks {
		last := i == len(toks)-1
		if err := s.batch.Add(tok, s.cursor, s.seqs, last); err != nil {
			return fmt.Errorf("%w: %w", engine.ErrDecode, err)
		}
		s.cursor++
		if !last && s.batch.Full() {
			if err := s.decode(); err != nil {
				return err
			}
			s.batch.Clear()
		}
	}
	return nil
}

// push appends a sampled token at the cursor as the sole batch entry.
func (s *state) push(tok engine.Token) error {
	s.batch.Clear()
	if err := s.batch.Add(tok, s.cursor, s.seqs, true); err != nil {
		return fmt.Errorf("%w: %w", engine.ErrDecode, err)
	}
	s.cursor++
	return nil
}

func (s *state) reset() error {
	s.batch.Clear()
	s.cursor = 0
	return engine.Guard(engine.ErrDecode, "clear cache", s.h.ClearCache)
}

func (s *state) acquire() error {
	if s.busy {
		return ErrStreamActive
	}
	s.busy = true
	return nil
}

func (s *state) release() { s.busy = false }
