package chat

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/samcharles93/luachat/internal/engine"
	"github.com/samcharles93/luachat/internal/logits"
)

// committer receives the outcome of a stream once it ends.
type committer interface {
	commit(text string, err error)
}

// Stream yields the visible text of one generated turn. It holds its context
// exclusively until it is exhausted or closed. A Stream is not safe for
// concurrent use.
type Stream struct {
	st       *state
	owner    committer
	sampling Sampling
	dec      engine.Decoder

	inHeader bool
	started  bool
	pending  engine.Token
	hasToken bool

	acc     string
	emitted int
	tokens  int

	text string
	err  error
	done bool
}

func newStream(st *state, owner committer, s Sampling) *Stream {
	return &Stream{
		st:       st,
		owner:    owner,
		sampling: s,
		inHeader: st.tpl.StartsInHeader(),
	}
}

// failedStream is a stream whose submission failed before any decode.
func failedStream(st *state, owner committer, err error) *Stream {
	s := newStream(st, owner, Sampling{})
	s.started = true
	s.finish(err)
	return s
}

// Next returns the next visible fragment. It returns io.EOF once the turn
// ends normally, and the turn's error if it failed; either is returned again
// on every later call.
func (s *Stream) Next() (string, error) {
	if s.done {
		return "", s.err
	}
	for {
		piece, eos, err := s.step()
		if err != nil {
			s.finish(err)
			return "", err
		}
		if eos {
			// Bytes of an unfinished character become U+FFFD.
			if tail := s.dec.Flush(); tail != "" && !s.inHeader {
				s.acc += tail
			}
			out := s.acc[s.emitted:]
			s.emitted = len(s.acc)
			s.finish(nil)
			return s.final(out)
		}
		if piece == "" {
			continue
		}
		if s.inHeader {
			if s.st.tpl.HeaderEnded(piece) {
				s.inHeader = false
			}
			continue
		}

		out, ok := s.st.tpl.FilterToken(piece, s.acc)
		if !ok {
			full := s.acc + piece
			cut := s.st.tpl.StopIndex(full, 0)
			if cut < 0 || cut < s.emitted {
				cut = max(len(s.acc), s.emitted)
			}
			s.acc = full[:cut]
			out := s.acc[s.emitted:]
			s.emitted = len(s.acc)
			s.finish(nil)
			return s.final(out)
		}
		s.acc += out

		visible := len(s.acc) - s.st.tpl.Holdback(s.acc)
		if visible > s.emitted {
			frag := s.acc[s.emitted:visible]
			s.emitted = visible
			return frag, nil
		}
	}
}

func (s *Stream) final(out string) (string, error) {
	if out == "" {
		return "", s.err
	}
	return out, nil
}

// step runs one decode and sample. The token sampled by the previous step is
// appended first, so a token that ends the turn never reaches the cache.
func (s *Stream) step() (string, bool, error) {
	st := s.st
	if !s.started {
		s.started = true
		s.dec.Reset()
	}
	if s.hasToken {
		s.hasToken = false
		if err := st.push(s.pending); err != nil {
			return "", false, err
		}
	}
	if err := st.decode(); err != nil {
		return "", false, err
	}

	idx := st.batch.Len() - 1
	cand, err := engine.GuardValue(engine.ErrDecode, "candidates", func() (*logits.Candidates, error) {
		return st.h.Candidates(idx)
	})
	if err != nil {
		return "", false, wrapDecode(fmt.Errorf("candidates at %d: %w", idx, err))
	}
	s.sampling.apply(cand)
	tok, err := engine.GuardValue(engine.ErrDecode, "sample", func() (engine.Token, error) {
		return st.h.Sample(cand), nil
	})
	if err != nil {
		return "", false, err
	}
	s.tokens++
	if tok == st.h.EOS() {
		return "", true, nil
	}

	b, err := engine.GuardValue(engine.ErrDecode, "detokenize", func() ([]byte, error) {
		return st.h.TokenBytes(tok)
	})
	if err != nil {
		return "", false, wrapDecode(fmt.Errorf("detokenize %d: %w", tok, err))
	}
	s.pending = tok
	s.hasToken = true
	return s.dec.Push(b), false, nil
}

func wrapDecode(err error) error {
	if errors.Is(err, engine.ErrDecode) {
		return err
	}
	return fmt.Errorf("%w: %w", engine.ErrDecode, err)
}

func (s *Stream) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.text = s.st.tpl.TrimCommitted(s.acc)
	if err == nil {
		err = io.EOF
	}
	s.err = err
	s.st.release()

	var commitErr error
	if !errors.Is(err, io.EOF) {
		commitErr = err
	}
	s.owner.commit(s.text, commitErr)
}

// All iterates over the visible fragments. A failed turn yields its error as
// the last element.
func (s *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			frag, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(frag, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the stream and returns the committed text.
func (s *Stream) Collect() (string, error) {
	for _, err := range s.All() {
		if err != nil {
			return s.text, err
		}
	}
	return s.text, nil
}

// Text returns the committed text once the stream has ended, or the text
// shown so far.
func (s *Stream) Text() string {
	if s.done {
		return s.text
	}
	return s.acc[:s.emitted]
}

// Err returns the turn error, or nil while the stream is live or after a
// normal end.
func (s *Stream) Err() error {
	if s.err == nil || errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

// Tokens reports how many tokens were sampled.
func (s *Stream) Tokens() int { return s.tokens }

// Done reports whether the stream has ended.
func (s *Stream) Done() bool { return s.done }

// Close ends the stream early and releases its context. Tokens already
// submitted are decoded so the cursor keeps matching the cache.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	var err error
	if !s.started && s.st.batch.Len() > 0 {
		s.started = true
		err = s.st.decode()
	}
	s.finish(nil)
	return err
}
