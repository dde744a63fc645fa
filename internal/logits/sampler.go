package logits

import "math/rand"

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed   int64
	Greedy bool
}

// Sampler draws token ids from candidate distributions. It is what an engine
// backend uses to implement its sample operation; policies such as temperature
// and top-p are applied to the candidates beforehand.
type Sampler struct {
	rng    *rand.Rand
	greedy bool
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		greedy: cfg.Greedy,
	}
}

// Sample draws a single id from c. The sample process is:
//
//  1. An empty candidate set yields -1.
//  2. A greedy sampler, or a set with a single candidate, returns the argmax.
//  3. Otherwise a softmax over the candidates is computed and a random value
//     drawn from [0,1) selects an id from the cumulative distribution.
func (s *Sampler) Sample(c *Candidates) int32 {
	if c.Len() == 0 {
		return -1
	}
	if s.greedy || c.Len() == 1 {
		return c.Argmax()
	}

	c.Softmax()
	r := s.rng.Float64()
	var cum float64
	for _, d := range c.Data {
		cum += float64(d.P)
		if r <= cum {
			return d.ID
		}
	}
	return c.Data[len(c.Data)-1].ID
}
