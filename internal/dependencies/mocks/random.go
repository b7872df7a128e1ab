package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/arena-auth/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	mu sync.Mutex

	// Tokens is a queue of results to return from Token
	Tokens []string
	index  int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom(tokens ...string) *MockRandom {
	return &MockRandom{Tokens: tokens}
}

// Token returns the next queued token. Once the queue is empty it returns
// predictable numbered tokens so callers still get distinct values.
func (r *MockRandom) Token(length int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() { r.index++ }()
	if r.index < len(r.Tokens) {
		return r.Tokens[r.index]
	}
	return fmt.Sprintf("token-%d", r.index)
}
