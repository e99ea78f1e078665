package testutil

import (
	"fmt"
	"sync"
)

// SequenceTokens generates predictable UUID-shaped tokens in sequence:
// 00000000-0000-4000-8000-000000000001, ...-000000000002, and so on.
//
// Implements records.TokenGenerator.
type SequenceTokens struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceTokens creates a generator whose first token ends in 1.
func NewSequenceTokens() *SequenceTokens {
	return &SequenceTokens{}
}

// Generate returns the next token.
func (g *SequenceTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", g.seq)
}

// Issued returns how many tokens were generated.
func (g *SequenceTokens) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}
