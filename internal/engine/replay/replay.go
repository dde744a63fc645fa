// Package replay implements a deterministic engine backend that answers every
// prompt with the next scripted reply. Prompts are tokenized one byte per
// token so token counts are predictable; reply pieces are emitted as single
// tokens, which lets a script split text at arbitrary token boundaries.
package replay

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/luachat/internal/engine"
	"github.com/samcharles93/luachat/internal/logits"
)

// EOSPiece marks the end-of-sequence token inside a scripted reply.
const EOSPiece = "<eos>"

const (
	bosToken  engine.Token = 256
	eosToken  engine.Token = 257
	pieceBase engine.Token = 258

	defaultBatch   = 32
	defaultContext = 4096
)

// Script is the YAML document describing the replies of a replay model.
//
//	replies:
//	  - ["Hel", "lo", "<|im_end|>"]
//	  - ["return 1 + 1", "<eos>"]
type Script struct {
	Replies [][]string `yaml:"replies"`
}

// Load reads a replay script from path.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read replay script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse replay script %s: %w", path, err)
	}
	return s, nil
}

// Model is a replay engine.Model. Every context created from it replays the
// script from the first reply.
type Model struct {
	script Script
	pieces []string
	ids    [][]engine.Token

	mu     sync.Mutex
	closed bool
}

// New builds a model from s.
func New(s Script) *Model {
	m := &Model{script: s}
	for _, reply := range s.Replies {
		ids := make([]engine.Token, 0, len(reply))
		for _, p := range reply {
			if p == EOSPiece {
				ids = append(ids, eosToken)
				continue
			}
			ids = append(ids, pieceBase+engine.Token(len(m.pieces)))
			m.pieces = append(m.pieces, p)
		}
		m.ids = append(m.ids, ids)
	}
	return m
}

// Replies builds a model from inline replies.
func Replies(replies ...[]string) *Model {
	return New(Script{Replies: replies})
}

func (m *Model) vocab() int { return int(pieceBase) + len(m.pieces) }

func (m *Model) NewContext(opts engine.ContextOptions) (engine.Handle, error) {
	return m.Context(opts)
}

// Context is NewContext returning the concrete type, for callers that need
// the inspection helpers.
func (m *Model) Context(opts engine.ContextOptions) (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, engine.ErrClosed
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatch
	}
	if opts.MaxContext <= 0 {
		opts.MaxContext = defaultContext
	}
	return &Context{
		model:   m,
		opts:    opts,
		sampler: logits.NewSampler(logits.SamplerConfig{Seed: opts.Seed, Greedy: true}),
	}, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *Model) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Context is a replay decode context.
type Context struct {
	model   *Model
	opts    engine.ContextOptions
	sampler *logits.Sampler

	kv      int
	last    []engine.BatchEntry
	fed     bytes.Buffer
	decodes int
	clears  int

	reply   int
	piece   int
	started bool

	failNext error
	closed   bool
}

func (c *Context) Tokenize(text string, addBOS bool) ([]engine.Token, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("tokenize %q: invalid utf-8: %w", text, engine.ErrTokenization)
	}
	toks := make([]engine.Token, 0, len(text)+1)
	if addBOS {
		toks = append(toks, bosToken)
	}
	for i := 0; i < len(text); i++ {
		toks = append(toks, engine.Token(text[i]))
	}
	return toks, nil
}

func (c *Context) TokenBytes(tok engine.Token) ([]byte, error) {
	switch {
	case tok >= 0 && tok < 256:
		return []byte{byte(tok)}, nil
	case tok == bosToken || tok == eosToken:
		return nil, nil
	case tok >= pieceBase && int(tok) < c.model.vocab():
		return []byte(c.model.pieces[tok-pieceBase]), nil
	}
	return nil, fmt.Errorf("token %d out of vocabulary", tok)
}

func (c *Context) BatchCapacity() int { return c.opts.BatchSize }

func (c *Context) Decode(b *engine.Batch) error {
	if c.closed {
		return engine.ErrClosed
	}
	if err := c.failNext; err != nil {
		c.failNext = nil
		return err
	}
	if b.Len() == 0 {
		return &engine.DecodeError{Pos: c.kv, Reason: "empty batch"}
	}
	if b.Len() > c.opts.BatchSize {
		return &engine.DecodeError{Pos: c.kv, Reason: fmt.Sprintf("batch of %d exceeds capacity %d", b.Len(), c.opts.BatchSize)}
	}
	prompt := false
	for i, e := range b.Entries() {
		if e.Pos != c.kv+i {
			return &engine.DecodeError{Pos: e.Pos, Reason: fmt.Sprintf("expected position %d", c.kv+i)}
		}
		if c.kv+i >= c.opts.MaxContext {
			return &engine.DecodeError{Pos: e.Pos, Reason: "context exhausted"}
		}
		if e.Token < pieceBase {
			prompt = true
		}
	}
	for _, e := range b.Entries() {
		if e.Token < 256 {
			c.fed.WriteByte(byte(e.Token))
		}
	}
	if prompt && c.started {
		c.reply++
		c.piece = 0
		c.started = false
	}
	c.kv += b.Len()
	c.last = append(c.last[:0], b.Entries()...)
	c.decodes++
	return nil
}

func (c *Context) Candidates(i int) (*logits.Candidates, error) {
	if i < 0 || i >= len(c.last) {
		return nil, fmt.Errorf("candidates for batch index %d of %d", i, len(c.last))
	}
	if !c.last[i].Logits {
		return nil, fmt.Errorf("batch index %d did not request logits", i)
	}
	out := make([]float32, c.model.vocab())
	out[c.expected()] = 10
	return logits.FromLogits(out), nil
}

func (c *Context) expected() engine.Token {
	if c.reply >= len(c.model.ids) {
		return eosToken
	}
	ids := c.model.ids[c.reply]
	if c.piece >= len(ids) {
		return eosToken
	}
	return ids[c.piece]
}

func (c *Context) Sample(cand *logits.Candidates) engine.Token {
	tok := engine.Token(c.sampler.Sample(cand))
	if tok == c.expected() {
		c.piece++
	}
	c.started = true
	return tok
}

func (c *Context) EOS() engine.Token { return eosToken }

func (c *Context) ClearCache() error {
	c.kv = 0
	c.last = c.last[:0]
	c.clears++
	return nil
}

func (c *Context) Close() error {
	c.closed = true
	return nil
}

// FailNextDecode makes the next Decode return err.
func (c *Context) FailNextDecode(err error) { c.failNext = err }

// Cache reports the number of tokens held in the KV cache.
func (c *Context) Cache() int { return c.kv }

// Fed returns every prompt byte decoded so far, across cache clears.
func (c *Context) Fed() string { return c.fed.String() }

// Decodes reports the number of successful Decode calls.
func (c *Context) Decodes() int { return c.decodes }

// Clears reports the number of ClearCache calls.
func (c *Context) Clears() int { return c.clears }

// Closed reports whether the context was closed.
func (c *Context) Closed() bool { return c.closed }

// Describe renders a short summary of the script for logging.
func (s Script) Describe() string {
	pieces := 0
	for _, r := range s.Replies {
		pieces += len(r)
	}
	return fmt.Sprintf("%d replies, %d pieces", len(s.Replies), pieces)
}
