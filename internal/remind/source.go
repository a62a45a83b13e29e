package remind

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/palletwatch/internal/correlate"
	"github.com/roach88/palletwatch/internal/model"
)

// Target is one (return date, center) pair a sweep considers.
type Target struct {
	ReturnDate model.Date
	Center     string
	// Label is the partner label used for classification.
	Label string
	// Row carries the current fill state of the table row.
	Row model.Row
	// EventID is set when the target came from a processed event.
	EventID string
}

// Source enumerates sweep targets.
type Source interface {
	Targets(ctx context.Context, now time.Time) ([]Target, error)
}

// RowReader reads every parsed table row.
type RowReader interface {
	Rows(ctx context.Context) ([]model.Row, error)
}

// RowFinder looks up one table row by key.
type RowFinder interface {
	FindRow(ctx context.Context, date model.Date, center string) (model.Row, error)
}

// TableSource treats every table row as a target, labelled by its
// supplier cell.
type TableSource struct {
	Rows RowReader
}

// Targets implements Source.
func (s TableSource) Targets(ctx context.Context, now time.Time) ([]Target, error) {
	rows, err := s.Rows.Rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Target, 0, len(rows))
	for _, r := range rows {
		if r.Date.IsZero() || model.IsEmptyCell(r.Center) {
			continue
		}
		out = append(out, Target{
			ReturnDate: r.Date,
			Center:     r.Center,
			Label:      r.Supplier,
			Row:        r,
		})
	}
	return out, nil
}

// EventSource yields one target per event processed by this process,
// with the fill state read from the table. Events whose return date has
// passed are dropped.
//
// Thread-safe: Can be called concurrently.
type EventSource struct {
	finder RowFinder

	mu     sync.Mutex
	events map[string]model.Event
}

// NewEventSource returns an empty EventSource backed by finder.
func NewEventSource(finder RowFinder) *EventSource {
	return &EventSource{finder: finder, events: make(map[string]model.Event)}
}

// Remember adds ev to the target set.
func (s *EventSource) Remember(ev model.Event) {
	if ev.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
}

// Len returns the number of remembered events.
func (s *EventSource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Targets implements Source. Events without a matching row are skipped.
func (s *EventSource) Targets(ctx context.Context, now time.Time) ([]Target, error) {
	today := model.DateOf(now)

	s.mu.Lock()
	events := make([]model.Event, 0, len(s.events))
	for id, ev := range s.events {
		if ev.EffectiveReturnDate().Before(today) {
			delete(s.events, id)
			continue
		}
		events = append(events, ev)
	}
	s.mu.Unlock()

	slices.SortFunc(events, func(a, b model.Event) int { return strings.Compare(a.ID, b.ID) })

	out := make([]Target, 0, len(events))
	for _, ev := range events {
		date := ev.EffectiveReturnDate()
		row, err := s.finder.FindRow(ctx, date, ev.RegionalCenter)
		if errors.Is(err, correlate.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		label := ev.PartnerCategory
		if model.IsEmptyCell(label) {
			label = row.Supplier
		}
		out = append(out, Target{
			ReturnDate: date,
			Center:     ev.RegionalCenter,
			Label:      label,
			Row:        row,
			EventID:    ev.ID,
		})
	}
	return out, nil
}
