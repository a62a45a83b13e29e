package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/palletwatch/internal/config"
	"github.com/roach88/palletwatch/internal/correlate"
	"github.com/roach88/palletwatch/internal/extract"
	"github.com/roach88/palletwatch/internal/ledger"
	"github.com/roach88/palletwatch/internal/mail"
	"github.com/roach88/palletwatch/internal/poll"
	"github.com/roach88/palletwatch/internal/remind"
	"github.com/roach88/palletwatch/internal/store"
	"github.com/roach88/palletwatch/internal/table"
	"github.com/roach88/palletwatch/internal/testutil"
)

// DefaultHeader is the header of the standard "приход" sheet.
var DefaultHeader = []string{
	"дата",
	"РЦ (выберите из списка)",
	"Поставщик (выберите из списка)",
	"водитель Фамилия И.О.",
	"номер ам",
}

// Harness wires the real pipeline over in-memory collaborators.
//
// Each scenario runs against a fresh in-memory database, an in-memory
// sheet with caching disabled, a settable clock and a recording sender.
type Harness struct {
	loc       *time.Location
	store     *store.Store
	sheet     *table.Memory
	columns   table.Columns
	mailbox   *mail.Memory
	clock     *testutil.Clock
	sender    *testutil.Sender
	claims    *remind.MemoryClaims
	loop      *poll.Loop
	scheduler *remind.Scheduler
	logger    *slog.Logger
}

// Run executes a scenario and returns the result. The error is non-nil
// only when the pipeline could not be built.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	h, err := newHarness(ctx, scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	result := NewResult()
	for i, step := range scenario.Steps {
		entry, err := h.executeStep(ctx, i, step)
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
		result.Trace = append(result.Trace, entry)
		checkExpect(result, i, step.Expect, entry)
	}

	for _, msg := range evaluateAssertions(result, scenario.Assertions, h) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario) (*Harness, error) {
	loc, err := scenario.location()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	led, err := ledger.Open(ctx, st, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	header := scenario.Table.Header
	if len(header) == 0 {
		header = DefaultHeader
	}
	columns, err := table.Discover(header, table.DefaultVocabulary())
	if err != nil {
		st.Close()
		return nil, err
	}

	h := &Harness{
		loc:     loc,
		store:   st,
		sheet:   table.NewMemory(header, scenario.Table.Rows...),
		columns: columns,
		mailbox: mail.NewMemory(),
		sender:  &testutil.Sender{},
		claims:  remind.NewMemoryClaims(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	first, _ := time.ParseInLocation(TimeLayout, scenario.Steps[0].At, loc)
	h.clock = testutil.NewClock(first)

	correlator := correlate.New(h.sheet, correlate.Options{CacheTTL: -1, Now: h.clock.Now})

	cats := remind.DefaultCategories()
	for i := range cats {
		if to, ok := scenario.Recipients[cats[i].Name]; ok {
			cats[i].Recipients = to
		} else {
			cats[i].Recipients = []string{cats[i].Name + "@example.com"}
		}
	}
	classifier, err := remind.NewClassifier(cats, remind.DefaultExcluded)
	if err != nil {
		st.Close()
		return nil, err
	}

	var source remind.Source = remind.TableSource{Rows: correlator}
	var events *remind.EventSource
	if scenario.Source == "events" {
		events = remind.NewEventSource(correlator)
		source = events
	}

	h.scheduler, err = remind.New(remind.Options{
		Classifier: classifier,
		Source:     source,
		Sender:     h.sender,
		Claims:     h.claims,
		Location:   loc,
		Logger:     h.logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	h.loop = &poll.Loop{
		Source:     h.mailbox,
		Extractor:  extract.New(),
		Ledger:     led,
		Records:    st,
		Correlator: correlator,
		Scheduler:  h.scheduler,
		Tokens:     poll.NewFixedGenerator(scenario.Name),
		Now:        h.clock.Now,
		Logger:     h.logger,
		Config: poll.Config{
			SubjectFilter: config.Default().Mail.SubjectFilter,
			Lookback:      24 * time.Hour,
			Location:      loc,
		},
	}
	if events != nil {
		h.loop.Targets = events
	}
	return h, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step Step) (TraceEntry, error) {
	at, err := time.ParseInLocation(TimeLayout, step.At, h.loc)
	if err != nil {
		return TraceEntry{Step: i + 1, Action: step.Action}, err
	}
	h.clock.Set(at)
	entry := TraceEntry{Step: i + 1, At: step.At, Action: step.Action}

	for _, m := range step.Deliver {
		received := at.Add(-time.Minute)
		if m.Received != "" {
			received, _ = time.ParseInLocation(TimeLayout, m.Received, h.loc)
		}
		subject := m.Subject
		if subject == "" {
			subject = config.Default().Mail.SubjectFilter
		}
		h.mailbox.Add(mail.Message{ID: m.ID, Subject: subject, Body: m.Body, ReceivedAt: received})
	}

	for _, e := range step.Edit {
		col, ok := h.columns[table.Column(e.Column)]
		if !ok {
			return entry, fmt.Errorf("edit: unknown column %q", e.Column)
		}
		h.sheet.SetCell(e.Row, col, e.Value)
	}

	before := len(h.sender.Sent())
	switch step.Action {
	case ActionCycle:
		report, err := h.loop.RunCycle(ctx)
		entry.Processed = report.Processed
		entry.Fills = report.Fills
		for _, e := range report.Errors {
			entry.Errors = append(entry.Errors, string(e.Kind))
		}
		if err != nil {
			return entry, err
		}
	case ActionSweep:
		if _, err := h.scheduler.Sweep(ctx, at); err != nil {
			entry.Errors = append(entry.Errors, err.Error())
		}
	}
	entry.Sent = h.sender.Sent()[before:]
	return entry, nil
}

func checkExpect(result *Result, i int, want *StepExpect, got TraceEntry) {
	if want == nil {
		return
	}
	if want.Sent != nil && *want.Sent != len(got.Sent) {
		result.AddError(fmt.Sprintf("steps[%d]: sent %d, expected %d", i, len(got.Sent), *want.Sent))
	}
	if want.Processed != nil && *want.Processed != got.Processed {
		result.AddError(fmt.Sprintf("steps[%d]: processed %d, expected %d", i, got.Processed, *want.Processed))
	}
	if want.Errors != nil && fmt.Sprint(want.Errors) != fmt.Sprint(got.Errors) {
		result.AddError(fmt.Sprintf("steps[%d]: errors %v, expected %v", i, got.Errors, want.Errors))
	}
}
