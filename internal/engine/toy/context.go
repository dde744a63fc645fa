package toy

import (
	"fmt"
	"sync"

	"github.com/samcharles93/luachat/internal/engine"
	"github.com/samcharles93/luachat/internal/logits"
)

// Config configures a toy Model.
type Config struct {
	Hidden int
	Seed   int64
	// EOSRamp is added to the EOS logit for every generated token, bounding
	// reply length.
	EOSRamp float32
}

// Model is an engine.Model backed by an LM.
type Model struct {
	lm  *LM
	cfg Config

	mu     sync.Mutex
	closed bool
}

// New returns a toy model. Zero config fields take defaults.
func New(cfg Config) *Model {
	if cfg.Hidden <= 0 {
		cfg.Hidden = 16
	}
	if cfg.EOSRamp <= 0 {
		cfg.EOSRamp = 0.25
	}
	return &Model{lm: NewLM(cfg.Hidden, cfg.Seed), cfg: cfg}
}

func (m *Model) NewContext(opts engine.ContextOptions) (engine.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, engine.ErrClosed
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.MaxContext <= 0 {
		opts.MaxContext = 2048
	}
	return &Context{
		lm:      m.lm,
		ramp:    m.cfg.EOSRamp,
		opts:    opts,
		h:       make([]float32, m.lm.Hidden),
		sampler: logits.NewSampler(logits.SamplerConfig{Seed: opts.Seed}),
	}, nil
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Context is a toy decode context. The hidden state plays the role of the
// KV cache; kv counts the positions it holds.
type Context struct {
	lm      *LM
	ramp    float32
	opts    engine.ContextOptions
	sampler *logits.Sampler

	h         []float32
	kv        int
	generated int
	out       map[int][]float32
}

func (c *Context) Tokenize(text string, addBOS bool) ([]engine.Token, error) {
	toks := make([]engine.Token, 0, len(text)+1)
	if addBOS {
		toks = append(toks, bosToken)
	}
	for i := 0; i < len(text); i++ {
		toks = append(toks, engine.Token(text[i]))
	}
	if len(toks) > c.opts.MaxContext {
		return nil, fmt.Errorf("tokenize: %d tokens exceed context of %d: %w", len(toks), c.opts.MaxContext, engine.ErrTokenization)
	}
	return toks, nil
}

func (c *Context) TokenBytes(tok engine.Token) ([]byte, error) {
	switch {
	case tok >= 0 && tok < byteVocab:
		return []byte{byte(tok)}, nil
	case tok == bosToken || tok == eosToken:
		return nil, nil
	}
	return nil, fmt.Errorf("token %d out of vocabulary", tok)
}

func (c *Context) BatchCapacity() int { return c.opts.BatchSize }

func (c *Context) Decode(b *engine.Batch) error {
	if b.Len() > c.opts.BatchSize {
		return &engine.DecodeError{Pos: c.kv, Reason: "batch exceeds capacity"}
	}
	out := make(map[int][]float32)
	prompt := false
	for i, e := range b.Entries() {
		if e.Pos != c.kv {
			return &engine.DecodeError{Pos: e.Pos, Reason: fmt.Sprintf("expected position %d", c.kv)}
		}
		if c.kv >= c.opts.MaxContext {
			return &engine.DecodeError{Pos: e.Pos, Reason: "context exhausted"}
		}
		c.lm.Step(c.h, int(e.Token))
		c.kv++
		if e.Token == bosToken || (e.Token < byteVocab && !e.Logits) {
			prompt = true
		}
		if e.Logits {
			out[i] = c.lm.Logits(c.h)
		}
	}
	if prompt {
		c.generated = 0
	}
	c.out = out
	return nil
}

func (c *Context) Candidates(i int) (*logits.Candidates, error) {
	l, ok := c.out[i]
	if !ok {
		return nil, fmt.Errorf("no logits for batch index %d", i)
	}
	l = append([]float32(nil), l...)
	l[eosToken] += c.ramp * float32(c.generated)
	return logits.FromLogits(l), nil
}

func (c *Context) Sample(cand *logits.Candidates) engine.Token {
	c.generated++
	return engine.Token(c.sampler.Sample(cand))
}

func (c *Context) EOS() engine.Token { return eosToken }

func (c *Context) ClearCache() error {
	clear(c.h)
	c.kv = 0
	c.out = nil
	return nil
}

func (c *Context) Close() error { return nil }
