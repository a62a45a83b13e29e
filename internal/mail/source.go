// Package mail enumerates incoming notification messages.
//
// The engine only needs an ordered feed of (id, subject, body, arrival
// time); transport details stay behind the Source interface.
package mail

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Message is one incoming message.
type Message struct {
	// ID is stable across enumerations of the same message.
	ID         string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Source lists messages newest first.
type Source interface {
	List(ctx context.Context) ([]Message, error)
}

// SortNewestFirst orders msgs by ReceivedAt descending, ties by ID.
func SortNewestFirst(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].ReceivedAt.Equal(msgs[j].ReceivedAt) {
			return msgs[i].ReceivedAt.After(msgs[j].ReceivedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// Memory is an in-process Source for tests.
type Memory struct {
	mu   sync.Mutex
	msgs []Message

	// Err, when set, is returned by List.
	Err error
}

// NewMemory returns a Memory source holding msgs.
func NewMemory(msgs ...Message) *Memory {
	return &Memory{msgs: append([]Message(nil), msgs...)}
}

// Add delivers msg.
func (m *Memory) Add(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

// List returns the messages newest first.
func (m *Memory) List(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := append([]Message(nil), m.msgs...)
	SortNewestFirst(out)
	return out, nil
}
