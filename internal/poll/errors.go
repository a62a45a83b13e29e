package poll

import (
	"errors"
	"fmt"
)

// Kind classifies an error contained within a cycle.
type Kind string

const (
	// KindParse: the message body could not be decomposed. The event is
	// marked seen and never retried.
	KindParse Kind = "parse"

	// KindCorrelationMiss: no table row matches the event's key.
	KindCorrelationMiss Kind = "correlation-miss"

	// KindStoreWrite: the table or the record store rejected a read or
	// write. Record-store failures leave the event unseen.
	KindStoreWrite Kind = "store-write"

	// KindTransport: a reminder could not be delivered. The dispatch key
	// stays claimed.
	KindTransport Kind = "transport"

	// KindSource: the mail source could not be enumerated. The cycle skips
	// its messages but still sweeps; the next cycle retries.
	KindSource Kind = "source"

	// KindInit: a collaborator could not be set up at startup. Fatal for
	// the run.
	KindInit Kind = "init"

	// KindPersist: the ledger snapshot could not be saved.
	KindPersist Kind = "persist"
)

// Error is one classified failure of a cycle.
type Error struct {
	Kind    Kind
	EventID string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("%s: %v (event=%s)", e.Kind, e.Err, e.EventID)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
// Uses errors.As to handle wrapped errors.
func IsKind(err error, k Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == k
	}
	return false
}
