package chat

import (
	"fmt"

	"github.com/samcharles93/luachat/internal/logits"
)

// RequestKind selects how a Request relates to the existing conversation.
type RequestKind int

const (
	// KindOnce appends a single turn.
	KindOnce RequestKind = iota
	// KindFull replaces the conversation with the given turns.
	KindFull
)

func (k RequestKind) String() string {
	if k == KindFull {
		return "full"
	}
	return "once"
}

// Request is a turn submission to a Context.
type Request struct {
	Kind  RequestKind
	Turns []Turn
}

// Once builds a request appending t.
func Once(t Turn) Request { return Request{Kind: KindOnce, Turns: []Turn{t}} }

// Full builds a request replacing the history with turns.
func Full(turns []Turn) Request { return Request{Kind: KindFull, Turns: turns} }

func (r Request) validate() error {
	if len(r.Turns) == 0 {
		return ErrEmptyPrompt
	}
	if r.Kind == KindOnce && len(r.Turns) != 1 {
		return fmt.Errorf("once request with %d turns: %w", len(r.Turns), ErrUnsupported)
	}
	return nil
}

// SamplingKind names a sampling policy.
type SamplingKind int

const (
	// SampleEngineDefault leaves the engine distribution untouched.
	SampleEngineDefault SamplingKind = iota
	SampleTemp
	SampleNucleus
)

// Sampling biases the candidate distribution before a token is drawn.
type Sampling struct {
	Kind        SamplingKind
	Temperature float32
	P           float32
	MinKeep     int
}

// SampleDefault uses the distribution as provided by the engine.
func SampleDefault() Sampling { return Sampling{} }

// SampleTemperature scales logits by 1/t.
func SampleTemperature(t float32) Sampling {
	return Sampling{Kind: SampleTemp, Temperature: t}
}

// SampleTopP keeps the most probable candidates whose mass reaches p, never
// fewer than minKeep.
func SampleTopP(p float32, minKeep int) Sampling {
	return Sampling{Kind: SampleNucleus, P: p, MinKeep: minKeep}
}

func (s Sampling) apply(c *logits.Candidates) {
	switch s.Kind {
	case SampleTemp:
		c.Temperature(s.Temperature)
	case SampleNucleus:
		c.TopP(s.P, s.MinKeep)
	}
}

func (s Sampling) String() string {
	switch s.Kind {
	case SampleTemp:
		return fmt.Sprintf("temperature(%g)", s.Temperature)
	case SampleNucleus:
		return fmt.Sprintf("top_p(%g, min_keep=%d)", s.P, s.MinKeep)
	}
	return "default"
}
