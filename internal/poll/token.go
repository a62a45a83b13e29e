package poll

import (
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces cycle tokens.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 cycle tokens.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined tokens in order, then repeats the
// last one.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
// With no tokens it always returns "cycle".
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	if len(tokens) == 0 {
		tokens = []string{"cycle"}
	}
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	token := g.tokens[g.idx]
	if g.idx < len(g.tokens)-1 {
		g.idx++
	}
	return token
}
