package engine

import (
	"errors"
	"fmt"
	"slices"
)

// ErrBatchFull is returned by Batch.Add when the batch is at capacity.
var ErrBatchFull = errors.New("batch full")

// SeqID identifies a sequence inside the KV cache.
type SeqID int32

// BatchEntry is one token submitted for decoding.
type BatchEntry struct {
	Token  Token
	Pos    int
	Seqs   []SeqID
	Logits bool
}

// Batch is a bounded buffer of tokens submitted to Handle.Decode.
type Batch struct {
	entries  []BatchEntry
	capacity int
}

// NewBatch returns an empty batch that accepts at most capacity entries.
func NewBatch(capacity int) *Batch {
	if capacity < 1 {
		capacity = 1
	}
	return &Batch{entries: make([]BatchEntry, 0, capacity), capacity: capacity}
}

// Add appends a token at pos. seqs is copied.
func (b *Batch) Add(tok Token, pos int, seqs []SeqID, wantLogits bool) error {
	if len(b.entries) >= b.capacity {
		return fmt.Errorf("add token at position %d: %w", pos, ErrBatchFull)
	}
	b.entries = append(b.entries, BatchEntry{
		Token:  tok,
		Pos:    pos,
		Seqs:   slices.Clone(seqs),
		Logits: wantLogits,
	})
	return nil
}

func (b *Batch) Clear()   { b.entries = b.entries[:0] }
func (b *Batch) Len() int { return len(b.entries) }
func (b *Batch) Cap() int { return b.capacity }
func (b *Batch) Full() bool {
	return len(b.entries) >= b.capacity
}

// Entries returns the batch contents. The slice is only valid until the next
// Add or Clear.
func (b *Batch) Entries() []BatchEntry { return b.entries }
