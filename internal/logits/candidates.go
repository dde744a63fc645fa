package logits

import (
	"math"
	"sort"
)

// TokenData is one entry of a candidate distribution.
type TokenData struct {
	ID    int32
	Logit float32
	P     float32
}

// Candidates is the distribution over token ids produced for a single batch
// position. Policies reshape it in place before a token is drawn from it.
type Candidates struct {
	Data   []TokenData
	sorted bool
}

// FromLogits builds a candidate set whose ids are the indices of logits.
func FromLogits(logits []float32) *Candidates {
	c := &Candidates{Data: make([]TokenData, len(logits))}
	for i, l := range logits {
		c.Data[i] = TokenData{ID: int32(i), Logit: l}
	}
	return c
}

func (c *Candidates) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Data)
}

// Softmax sorts the candidates by descending logit and fills P. The maximum
// logit is subtracted before exponentiation for numerical stability.
func (c *Candidates) Softmax() {
	if c.Len() == 0 {
		return
	}
	c.sort()
	maxv := c.Data[0].Logit
	var sum float64
	for i := range c.Data {
		e := math.Exp(float64(c.Data[i].Logit - maxv))
		c.Data[i].P = float32(e)
		sum += e
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / sum
	for i := range c.Data {
		c.Data[i].P = float32(float64(c.Data[i].P) * inv)
	}
}

// Temperature scales every logit by 1/t. A non-positive temperature collapses
// the distribution onto its argmax.
func (c *Candidates) Temperature(t float32) {
	if c.Len() == 0 {
		return
	}
	if t <= 0 {
		best := c.argmaxIndex()
		c.Data = append(c.Data[:0], c.Data[best])
		c.sorted = true
		return
	}
	inv := 1 / t
	for i := range c.Data {
		c.Data[i].Logit *= inv
	}
}

// TopP keeps the smallest most-probable prefix whose cumulative probability
// reaches p, but never fewer than minKeep candidates.
func (c *Candidates) TopP(p float32, minKeep int) {
	if c.Len() == 0 || p >= 1 {
		return
	}
	minKeep = max(minKeep, 1)
	c.Softmax()

	cut := len(c.Data)
	var cum float64
	for i := range c.Data {
		cum += float64(c.Data[i].P)
		if float32(cum) >= p && i+1 >= minKeep {
			cut = i + 1
			break
		}
	}
	c.Data = c.Data[:cut]
}

// Argmax returns the id with the highest logit, or -1 for an empty set.
func (c *Candidates) Argmax() int32 {
	if c.Len() == 0 {
		return -1
	}
	return c.Data[c.argmaxIndex()].ID
}

func (c *Candidates) argmaxIndex() int {
	if c.sorted {
		return 0
	}
	best := 0
	for i := 1; i < len(c.Data); i++ {
		if c.Data[i].Logit > c.Data[best].Logit {
			best = i
		}
	}
	return best
}

func (c *Candidates) sort() {
	if c.sorted {
		return
	}
	sort.SliceStable(c.Data, func(i, j int) bool {
		return c.Data[i].Logit > c.Data[j].Logit
	})
	c.sorted = true
}
