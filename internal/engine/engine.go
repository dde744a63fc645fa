// Package engine defines the contract between the chat core and a native
// inference backend: model contexts, token batches and the helpers shared by
// every backend implementation.
package engine

import "github.com/samcharles93/luachat/internal/logits"

// Token is a vocabulary id produced by a backend tokenizer.
type Token int32

// ContextOptions configures a decode context created from a Model.
type ContextOptions struct {
	// MaxContext bounds the number of tokens the KV cache can hold. Zero
	// selects the backend default.
	MaxContext int
	// BatchSize is the maximum number of entries a single Decode accepts.
	// Zero selects the backend default.
	BatchSize int
	Seed      int64
}

// Model is a loaded set of weights from which decode contexts are created.
type Model interface {
	NewContext(opts ContextOptions) (Handle, error)
	Close() error
}

// Handle is a single decode context. It owns the KV cache and is not safe for
// concurrent use.
type Handle interface {
	// Tokenize converts text to tokens, optionally prepending the
	// beginning-of-sequence marker.
	Tokenize(text string, addBOS bool) ([]Token, error)
	// TokenBytes returns the raw bytes of tok. A token may carry a partial
	// UTF-8 sequence; callers assemble text with a Decoder.
	TokenBytes(tok Token) ([]byte, error)
	BatchCapacity() int
	// Decode evaluates every entry of b, appending it to the KV cache.
	Decode(b *Batch) error
	// Candidates returns the distribution for batch index i of the most
	// recent Decode. The entry must have requested logits.
	Candidates(i int) (*logits.Candidates, error)
	Sample(c *logits.Candidates) Token
	EOS() Token
	ClearCache() error
	Close() error
}
