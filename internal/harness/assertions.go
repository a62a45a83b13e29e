package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/notify"
	"github.com/roach88/palletwatch/internal/table"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Sent     []notify.Message // Everything sent, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Sent) > 0 {
		fmt.Fprintf(&buf, "\nSent:\n")
		for i, m := range e.Sent {
			fmt.Fprintf(&buf, "  [%d] %s -> %s\n", i+1, m.Subject, strings.Join(m.To, ", "))
		}
	}
	return buf.String()
}

func assertSentCount(sent []notify.Message, a Assertion) error {
	if len(sent) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertSentCount,
		Expected: fmt.Sprintf("%d messages", a.Count),
		Actual:   fmt.Sprintf("%d messages", len(sent)),
		Sent:     sent,
	}
}

func assertSentContains(sent []notify.Message, a Assertion) error {
	for _, m := range sent {
		if a.To != "" && !slices.Contains(m.To, a.To) {
			continue
		}
		if !strings.Contains(m.Subject, a.Subject) || !strings.Contains(m.Body, a.Body) {
			continue
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertSentContains,
		Expected: fmt.Sprintf("message to=%q subject~%q body~%q", a.To, a.Subject, a.Body),
		Actual:   "no matching message",
		Sent:     sent,
	}
}

func assertCellEquals(h *Harness, a Assertion) error {
	col, ok := h.columns[table.Column(a.Column)]
	if !ok {
		return fmt.Errorf("cell_equals: unknown column %q", a.Column)
	}
	got := h.sheet.Cell(a.Row, col)
	if got == a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertCellEquals,
		Expected: fmt.Sprintf("row %d %s = %q", a.Row, a.Column, a.Value),
		Actual:   fmt.Sprintf("%q", got),
	}
}

func assertClaimed(h *Harness, a Assertion) error {
	date, err := model.ParseDate(a.Date)
	if err != nil {
		return fmt.Errorf("claimed: %w", err)
	}
	key := model.DispatchKey{Date: date, Center: a.Center, Kind: a.Kind}
	if h.claims.Claimed(key) {
		return nil
	}
	return &AssertionError{
		Type:     AssertClaimed,
		Expected: fmt.Sprintf("key %s claimed", key),
		Actual:   fmt.Sprintf("%d keys claimed, not this one", h.claims.Len()),
	}
}

func assertRecorded(ctx context.Context, h *Harness, id string) error {
	ok, err := h.store.HasRecord(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no record for %s", AssertRecorded, id)
	}
	return nil
}

// evaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func evaluateAssertions(result *Result, assertions []Assertion, h *Harness) []string {
	var errs []string
	sent := result.Sent()

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSentCount:
			err = assertSentCount(sent, a)
		case AssertSentContains:
			err = assertSentContains(sent, a)
		case AssertCellEquals:
			err = assertCellEquals(h, a)
		case AssertClaimed:
			err = assertClaimed(h, a)
		case AssertRecorded:
			err = assertRecorded(context.Background(), h, a.ID)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
