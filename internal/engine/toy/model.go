// Package toy provides a small self-contained language model used to run the
// chat loop without native weights. It has a byte vocabulary, seeded random
// weights and a recurrent hidden state standing in for the KV cache.
package toy

import (
	"math/rand"
)

const (
	byteVocab = 256
	bosToken  = byteVocab
	eosToken  = byteVocab + 1
	vocabSize = byteVocab + 2
)

// mat is a dense row-major matrix.
type mat struct {
	r, c int
	data []float32
}

func newMat(r, c int) mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return mat{r: r, c: c, data: make([]float32, r*c)}
}

func (m *mat) row(i int) []float32 {
	if i < 0 || i >= m.r {
		panic("row index out of range")
	}
	return m.data[i*m.c : (i+1)*m.c]
}

// fillRand fills m with values in (-scale/2, scale/2).
func fillRand(m *mat, seed int64, scale float32) {
	rng := rand.New(rand.NewSource(seed))
	for i := range m.data {
		m.data[i] = (rng.Float32() - 0.5) * scale
	}
}

// LM is the toy network: an embedding matrix, a projection back to vocab
// logits and a bias. Each step mixes the embedding of the input token into a
// decaying hidden state.
type LM struct {
	Vocab  int
	Hidden int

	emb  mat // [Vocab x Hidden]
	w    mat // [Hidden x Vocab]
	bias []float32
}

// NewLM constructs a model with the given hidden size, initialising weights
// deterministically from seed. Only printable ASCII, newline and EOS receive
// a usable bias so generated text stays readable.
func NewLM(hidden int, seed int64) *LM {
	m := &LM{
		Vocab:  vocabSize,
		Hidden: hidden,
		emb:    newMat(vocabSize, hidden),
		w:      newMat(hidden, vocabSize),
		bias:   make([]float32, vocabSize),
	}
	fillRand(&m.emb, seed+11, 2)
	fillRand(&m.w, seed+23, 2)
	for i := range m.bias {
		if i == '\n' || (i >= ' ' && i < 0x7f) || i == eosToken {
			continue
		}
		m.bias[i] = -30
	}
	return m
}

// Step folds tok into h.
func (m *LM) Step(h []float32, tok int) {
	tok = wrap(tok, m.Vocab)
	e := m.emb.row(tok)
	for i := range h {
		h[i] = 0.5*h[i] + e[i]
	}
}

// Logits projects h onto the vocabulary. A newly allocated slice is
// returned.
func (m *LM) Logits(h []float32) []float32 {
	out := make([]float32, m.Vocab)
	for j := 0; j < m.Vocab; j++ {
		var sum float32
		for i := 0; i < m.Hidden; i++ {
			sum += h[i] * m.w.row(i)[j]
		}
		out[j] = sum + m.bias[j]
	}
	return out
}

func wrap(tok, n int) int {
	if tok < 0 || tok >= n {
		tok %= n
		if tok < 0 {
			tok += n
		}
	}
	return tok
}
