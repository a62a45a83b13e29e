package remind

import (
	"context"
	"sync"

	"github.com/roach88/palletwatch/internal/model"
)

// Claims is the dispatched-key set. Claim returns true exactly once per
// key; only the caller that won the claim may send.
type Claims interface {
	Claim(ctx context.Context, key model.DispatchKey) (bool, error)
}

// MemoryClaims is the process-local claim set. It resets with the process.
//
// Thread-safe: Can be called concurrently.
type MemoryClaims struct {
	mu      sync.Mutex
	claimed map[string]bool
}

// NewMemoryClaims returns an empty claim set.
func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{claimed: make(map[string]bool)}
}

// Claim marks key as dispatched. Returns false if it already was.
func (m *MemoryClaims) Claim(ctx context.Context, key model.DispatchKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	if m.claimed[k] {
		return false, nil
	}
	m.claimed[k] = true
	return true, nil
}

// Claimed reports whether key was claimed.
func (m *MemoryClaims) Claimed(key model.DispatchKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimed[key.String()]
}

// Len returns the number of claimed keys.
func (m *MemoryClaims) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claimed)
}

// Reset forgets every claim.
func (m *MemoryClaims) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed = make(map[string]bool)
}
