package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPersist wraps failures to write the identifier set. The id is still
// held in memory when it is returned.
var ErrPersist = errors.New("ledger: persist failed")

// IDStore is the durable backing of the identifier set.
type IDStore interface {
	LoadIDs(ctx context.Context) ([]string, error)
	SaveIDs(ctx context.Context, ids []string) error
}

// RecordChecker reports whether the output record store already holds a
// record for an event.
type RecordChecker interface {
	HasRecord(ctx context.Context, eventID string) (bool, error)
}

// Verdict is the outcome of a deduplication check.
type Verdict int

const (
	// Fresh means neither guard knows the id; the event should be processed.
	Fresh Verdict = iota
	// SeenLedger means the id is in the identifier set.
	SeenLedger
	// SeenStore means the record store already holds the event.
	SeenStore
)

func (v Verdict) String() string {
	switch v {
	case Fresh:
		return "fresh"
	case SeenLedger:
		return "seen-ledger"
	case SeenStore:
		return "seen-store"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Ledger is the set of handled event ids.
//
// Thread-safe: Can be called concurrently, though the polling loop uses it
// from a single goroutine.
type Ledger struct {
	store   IDStore
	records RecordChecker

	mu    sync.Mutex
	seen  map[string]bool
	order []string
}

// Open loads the persisted set from store. records may be nil, in which
// case only the identifier set is consulted.
func Open(ctx context.Context, store IDStore, records RecordChecker) (*Ledger, error) {
	ids, err := store.LoadIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	l := &Ledger{
		store:   store,
		records: records,
		seen:    make(map[string]bool, len(ids)),
	}
	for _, id := range ids {
		if id == "" || l.seen[id] {
			continue
		}
		l.seen[id] = true
		l.order = append(l.order, id)
	}
	return l, nil
}

// HasSeen reports whether id is in the identifier set.
func (l *Ledger) HasSeen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[id]
}

// MarkSeen adds id and persists the full set before returning. Marking an
// id that is already present is a no-op.
func (l *Ledger) MarkSeen(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("mark seen: empty id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seen[id] {
		return nil
	}
	l.seen[id] = true
	l.order = append(l.order, id)

	snapshot := make([]string, len(l.order))
	copy(snapshot, l.order)
	if err := l.store.SaveIDs(ctx, snapshot); err != nil {
		return fmt.Errorf("%w: mark %s: %v", ErrPersist, id, err)
	}
	return nil
}

// IsDuplicateInStore asks the record store whether it already holds id.
func (l *Ledger) IsDuplicateInStore(ctx context.Context, id string) (bool, error) {
	if l.records == nil {
		return false, nil
	}
	ok, err := l.records.HasRecord(ctx, id)
	if err != nil {
		return false, fmt.Errorf("record store check %s: %w", id, err)
	}
	return ok, nil
}

// Check runs both guards in order. A SeenStore verdict records id as seen;
// if persisting that fails the verdict is still SeenStore and the error
// wraps ErrPersist.
func (l *Ledger) Check(ctx context.Context, id string) (Verdict, error) {
	if l.HasSeen(id) {
		return SeenLedger, nil
	}
	dup, err := l.IsDuplicateInStore(ctx, id)
	if err != nil {
		return Fresh, err
	}
	if !dup {
		return Fresh, nil
	}
	if err := l.MarkSeen(ctx, id); err != nil {
		return SeenStore, err
	}
	return SeenStore, nil
}

// IDs returns the ids in insertion order.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Len returns the number of ids held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Reset drops the in-memory set. The persisted set is untouched, so a
// fresh Open restores it.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]bool)
	l.order = nil
}
