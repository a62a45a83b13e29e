// Package notify delivers reminder messages.
//
// Senders are fire-and-forget: a failed Send is reported to the caller and
// never retried here.
package notify

import (
	"context"
	"errors"
)

// ErrNoRecipients is returned for a message with an empty To list.
var ErrNoRecipients = errors.New("notify: no recipients")

// Message is one outbound notification.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
