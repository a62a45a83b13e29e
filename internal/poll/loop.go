package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/palletwatch/internal/correlate"
	"github.com/roach88/palletwatch/internal/extract"
	"github.com/roach88/palletwatch/internal/ledger"
	"github.com/roach88/palletwatch/internal/mail"
	"github.com/roach88/palletwatch/internal/metrics"
	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/remind"
	"github.com/roach88/palletwatch/internal/store"
	"github.com/roach88/palletwatch/internal/table"
)

// DefaultInterval is the pause between cycles.
const DefaultInterval = time.Minute

// Ledger is the processed-identifier guard.
type Ledger interface {
	Check(ctx context.Context, id string) (ledger.Verdict, error)
	MarkSeen(ctx context.Context, id string) error
}

// Records is the output record store.
type Records interface {
	AppendRecord(ctx context.Context, rec store.Record) (bool, error)
}

// Correlator fills table rows from events.
type Correlator interface {
	Apply(ctx context.Context, ev model.Event) (correlate.Result, error)
}

// Sweeper runs the reminder rules.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Remembered receives every processed event. Implemented by
// remind.EventSource.
type Remembered interface {
	Remember(ev model.Event)
}

// Config holds the cycle parameters.
type Config struct {
	// SubjectFilter is matched case-insensitively against subjects. Empty
	// matches everything.
	SubjectFilter string
	// Lookback bounds how old a message may be. Zero disables the cutoff.
	Lookback time.Duration
	// Interval defaults to DefaultInterval.
	Interval time.Duration
	// Layout defaults to store.LayoutRow.
	Layout store.Layout
	// Location is the engine's zone. Arrival times are converted to it
	// before extraction, so an event without a stated return date falls on
	// the local arrival day. Nil keeps the zone the source reported.
	Location *time.Location
}

// Loop runs ingestion cycles. Source, Extractor, Ledger and Records are
// required; a nil Correlator disables table work and a nil Scheduler
// disables reminders.
type Loop struct {
	Source     mail.Source
	Extractor  *extract.Extractor
	Ledger     Ledger
	Records    Records
	Correlator Correlator
	Scheduler  Sweeper
	Targets    Remembered
	Tokens     TokenGenerator
	Now        func() time.Time
	Logger     *slog.Logger
	Config     Config
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	Token    string
	Started  time.Time
	Duration time.Duration

	Scanned    int
	Filtered   int
	Duplicates int
	Processed  int
	Fills      int
	Reminders  int

	Errors []*Error
}

// Count returns the number of contained errors of kind k.
func (r *CycleReport) Count(k Kind) int {
	n := 0
	for _, e := range r.Errors {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func (r *CycleReport) add(e *Error) {
	r.Errors = append(r.Errors, e)
	metrics.CycleErrors.WithLabelValues(string(e.Kind)).Inc()
}

func (l *Loop) validate() error {
	switch {
	case l.Source == nil:
		return errors.New("poll: source required")
	case l.Extractor == nil:
		return errors.New("poll: extractor required")
	case l.Ledger == nil:
		return errors.New("poll: ledger required")
	case l.Records == nil:
		return errors.New("poll: records required")
	}
	return nil
}

func (l *Loop) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Loop) token() string {
	if l.Tokens != nil {
		return l.Tokens.Generate()
	}
	return UUIDv7Generator{}.Generate()
}

// Run executes cycles until ctx is cancelled and returns ctx.Err(). Failed
// cycles are logged and the loop carries on. A KindInit error still stops
// it; RunCycle itself never produces one.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.validate(); err != nil {
		return err
	}
	interval := l.Config.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := l.logger()
	log.Info("poll loop starting", "interval", interval)

	for {
		if _, err := l.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				log.Info("poll loop stopping: context cancelled")
				return ctx.Err()
			}
			if IsKind(err, KindInit) {
				log.Error("poll loop stopping", "error", err)
				return err
			}
			log.Error("cycle failed", "error", err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("poll loop stopping: context cancelled")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunCycle executes one cycle. The error is non-nil only when ctx was
// cancelled. Per-message failures and a failed listing (KindSource) are in
// the report; the sweep runs either way.
func (l *Loop) RunCycle(ctx context.Context) (report CycleReport, err error) {
	if err := l.validate(); err != nil {
		return CycleReport{}, err
	}
	report = CycleReport{Token: l.token(), Started: l.now()}
	log := l.logger().With("cycle", report.Token)
	defer func() {
		report.Duration = l.now().Sub(report.Started)
		metrics.CycleDuration.Observe(report.Duration.Seconds())
	}()

	msgs, err := l.Source.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		log.Error("list messages failed", "error", err)
		report.add(&Error{Kind: KindSource, Err: fmt.Errorf("list messages: %w", err)})
		msgs = nil
	}

	var cutoff time.Time
	if l.Config.Lookback > 0 {
		cutoff = report.Started.Add(-l.Config.Lookback)
	}

	correlating := l.Correlator != nil
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !cutoff.IsZero() && m.ReceivedAt.Before(cutoff) {
			break
		}
		report.Scanned++
		metrics.MessagesScanned.Inc()

		if l.Config.SubjectFilter != "" && !model.FoldContains(m.Subject, l.Config.SubjectFilter) {
			report.Filtered++
			continue
		}
		if l.process(ctx, log, &report, m, &correlating) {
			report.Processed++
		}
	}

	if l.Scheduler != nil {
		n, err := l.Scheduler.Sweep(ctx, l.now())
		report.Reminders = n
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			l.sweepErrors(log, &report, err)
		}
	}

	log.Info("cycle complete",
		"scanned", report.Scanned,
		"filtered", report.Filtered,
		"duplicates", report.Duplicates,
		"processed", report.Processed,
		"fills", report.Fills,
		"reminders", report.Reminders,
		"errors", len(report.Errors),
	)
	return report, nil
}

// process handles one matching message and reports whether a new record
// was written for it.
func (l *Loop) process(ctx context.Context, log *slog.Logger, report *CycleReport, m mail.Message, correlating *bool) bool {
	log = log.With("event", m.ID)

	verdict, err := l.Ledger.Check(ctx, m.ID)
	switch {
	case errors.Is(err, ledger.ErrPersist):
		log.Warn("ledger persist failed", "error", err)
		report.add(&Error{Kind: KindPersist, EventID: m.ID, Err: err})
	case err != nil:
		log.Warn("record store check failed", "error", err)
		report.add(&Error{Kind: KindStoreWrite, EventID: m.ID, Err: err})
		return false
	}
	if verdict != ledger.Fresh {
		log.Debug("duplicate message", "verdict", verdict.String())
		report.Duplicates++
		metrics.EventsProcessed.WithLabelValues("duplicate").Inc()
		return false
	}

	receivedAt := m.ReceivedAt
	if l.Config.Location != nil {
		receivedAt = receivedAt.In(l.Config.Location)
	}
	ev, err := l.Extractor.Extract(m.Body, receivedAt)
	if err != nil {
		log.Warn("parse failed", "error", err)
		report.add(&Error{Kind: KindParse, EventID: m.ID, Err: err})
		metrics.EventsProcessed.WithLabelValues("parse_error").Inc()
		l.markSeen(ctx, log, report, m.ID)
		return false
	}
	ev.ID = m.ID
	for _, w := range ev.Warnings {
		log.Warn("field warning", "warning", w)
	}

	layout := l.Config.Layout
	if layout == "" {
		layout = store.LayoutRow
	}
	rec, err := store.NewRecord(ev, layout, l.now())
	if err == nil {
		var inserted bool
		inserted, err = l.Records.AppendRecord(ctx, rec)
		if err == nil && !inserted {
			log.Debug("record already present")
		}
	}
	if err != nil {
		log.Error("record write failed", "error", err)
		report.add(&Error{Kind: KindStoreWrite, EventID: m.ID, Err: err})
		metrics.EventsProcessed.WithLabelValues("store_error").Inc()
		return false
	}

	if *correlating {
		l.correlate(ctx, log, report, ev, correlating)
	}

	l.markSeen(ctx, log, report, m.ID)
	if l.Targets != nil {
		l.Targets.Remember(ev)
	}
	metrics.EventsProcessed.WithLabelValues("processed").Inc()
	log.Info("event processed",
		"return_date", ev.EffectiveReturnDate().String(),
		"center", ev.RegionalCenter,
		"partner", ev.PartnerCategory,
	)
	return true
}

func (l *Loop) correlate(ctx context.Context, log *slog.Logger, report *CycleReport, ev model.Event, correlating *bool) {
	res, err := l.Correlator.Apply(ctx, ev)
	metrics.TableFills.WithLabelValues(string(model.FieldDriver), res.Driver.String()).Inc()
	metrics.TableFills.WithLabelValues(string(model.FieldTractor), res.Tractor.String()).Inc()

	var colErr *table.ColumnError
	var writeErr *correlate.WriteError
	switch {
	case err == nil:
		if res.Updated() {
			report.Fills++
			log.Info("table row updated", "row", res.Row.Index,
				"driver", res.Driver.String(), "tractor", res.Tractor.String())
		}
	case errors.Is(err, correlate.ErrNotFound):
		log.Warn("no matching table row", "date", ev.EffectiveReturnDate().String(), "center", ev.RegionalCenter)
		report.add(&Error{Kind: KindCorrelationMiss, EventID: ev.ID, Err: err})
	case errors.As(err, &colErr):
		log.Error("table columns missing, correlation disabled for this cycle", "error", err)
		report.add(&Error{Kind: KindStoreWrite, EventID: ev.ID, Err: err})
		*correlating = false
	case errors.As(err, &writeErr):
		log.Warn("table write failed", "error", err)
		report.add(&Error{Kind: KindStoreWrite, EventID: ev.ID, Err: err})
	default:
		log.Warn("table read failed", "error", err)
		report.add(&Error{Kind: KindStoreWrite, EventID: ev.ID, Err: err})
	}
}

func (l *Loop) markSeen(ctx context.Context, log *slog.Logger, report *CycleReport, id string) {
	if err := l.Ledger.MarkSeen(ctx, id); err != nil {
		log.Warn("ledger persist failed", "error", err)
		report.add(&Error{Kind: KindPersist, EventID: id, Err: err})
	}
}

// sweepErrors classifies the joined error of a sweep.
func (l *Loop) sweepErrors(log *slog.Logger, report *CycleReport, err error) {
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var dErr *remind.DispatchError
		if errors.As(e, &dErr) {
			report.add(&Error{Kind: KindTransport, Err: e})
			continue
		}
		log.Warn("reminder sweep failed", "error", e)
		report.add(&Error{Kind: KindStoreWrite, Err: e})
	}
}
