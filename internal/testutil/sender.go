package testutil

import (
	"context"
	"sync"

	"github.com/roach88/palletwatch/internal/notify"
)

// Sender records every message it is asked to deliver.
//
// Set Err to make subsequent sends fail; failed messages are not recorded.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sender struct {
	mu   sync.Mutex
	sent []notify.Message
	Err  error
}

// Send implements notify.Sender.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages in send order.
func (s *Sender) Sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.sent...)
}

// Reset forgets delivered messages.
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}
