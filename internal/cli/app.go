package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/palletwatch/internal/config"
	"github.com/roach88/palletwatch/internal/correlate"
	"github.com/roach88/palletwatch/internal/extract"
	"github.com/roach88/palletwatch/internal/ledger"
	"github.com/roach88/palletwatch/internal/mail"
	"github.com/roach88/palletwatch/internal/notify"
	"github.com/roach88/palletwatch/internal/poll"
	"github.com/roach88/palletwatch/internal/remind"
	"github.com/roach88/palletwatch/internal/store"
	"github.com/roach88/palletwatch/internal/table"
)

// app is the process wiring for one configuration.
type app struct {
	cfg        config.Config
	loc        *time.Location
	logger     *slog.Logger
	store      *store.Store
	ledger     *ledger.Ledger
	correlator *correlate.Correlator
	scheduler  *remind.Scheduler
	loop       *poll.Loop
}

// appOptions overrides collaborators in tests.
type appOptions struct {
	// Sender replaces the configured notifier.
	Sender notify.Sender
	// Now replaces the wall clock.
	Now func() time.Time
}

// openApp opens the store and ledger and builds the correlator, scheduler
// and poll loop for cfg. The mail spool is attached separately by
// attachMail. Callers must close the returned app.
func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	layout, err := store.ParseLayout(cfg.Records.Layout)
	if err != nil {
		return nil, err
	}

	logger.Debug("opening record store", "path", cfg.Records.Path)
	st, err := store.Open(cfg.Records.Path)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	a := &app{cfg: cfg, loc: loc, logger: logger, store: st}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	var ids ledger.IDStore = st
	if cfg.Ledger.Backend == "file" {
		ids = ledger.FileIDStore{Path: cfg.Ledger.Path}
	}
	if a.ledger, err = ledger.Open(ctx, ids, st); err != nil {
		return fail(fmt.Errorf("open ledger: %w", err))
	}
	logger.Debug("ledger loaded", "backend", cfg.Ledger.Backend, "ids", a.ledger.Len())

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	a.correlator = correlate.New(table.NewXLSX(cfg.Table.Path, cfg.Table.Sheet), correlate.Options{
		CacheTTL: cfg.CacheTTL(),
		Now:      now,
	})

	events, err := a.newScheduler(st, opts.Sender)
	if err != nil {
		return fail(err)
	}

	a.loop = &poll.Loop{
		Extractor:  extract.New(),
		Ledger:     a.ledger,
		Records:    st,
		Correlator: a.correlator,
		Scheduler:  a.scheduler,
		Tokens:     poll.UUIDv7Generator{},
		Now:        now,
		Logger:     logger,
		Config: poll.Config{
			SubjectFilter: cfg.Mail.SubjectFilter,
			Lookback:      cfg.Lookback(),
			Interval:      cfg.PollInterval(),
			Layout:        layout,
			Location:      a.loc,
		},
	}
	if events != nil {
		a.loop.Targets = events
	}
	return a, nil
}

// newScheduler sets a.scheduler. The returned EventSource is non-nil when
// reminders track processed events and must be fed by the loop.
func (a *app) newScheduler(st *store.Store, sender notify.Sender) (*remind.EventSource, error) {
	cats, err := a.cfg.Categories()
	if err != nil {
		return nil, err
	}
	classifier, err := remind.NewClassifier(cats, a.cfg.Reminders.Excluded)
	if err != nil {
		return nil, err
	}
	renderer, err := a.cfg.Renderer()
	if err != nil {
		return nil, err
	}
	if sender == nil {
		sender = newSender(a.cfg, a.logger)
	}

	var claims remind.Claims = remind.NewMemoryClaims()
	if a.cfg.Reminders.PersistClaims {
		claims = st
	}

	var source remind.Source = remind.TableSource{Rows: a.correlator}
	var events *remind.EventSource
	if a.cfg.Reminders.Source == "events" {
		events = remind.NewEventSource(a.correlator)
		source = events
	}

	a.scheduler, err = remind.New(remind.Options{
		Classifier: classifier,
		Source:     source,
		Sender:     sender,
		Claims:     claims,
		Renderer:   renderer,
		Window:     a.cfg.ReminderWindow(),
		Location:   a.loc,
		Logger:     a.logger,
	})
	return events, err
}

// attachMail connects the mail spool. Commands that never read mail skip it.
func (a *app) attachMail() error {
	spool, err := mail.OpenSpool(a.cfg.SpoolPath(), a.logger)
	if err != nil {
		return err
	}
	a.loop.Source = spool
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing record store", "error", err)
	}
}

// newSender returns the configured notifier, rate limited when
// notify.rate_per_minute is set.
func newSender(cfg config.Config, logger *slog.Logger) notify.Sender {
	var s notify.Sender
	if cfg.Notify.DryRun {
		s = notify.Log{Logger: logger}
	} else {
		s = &notify.SMTP{
			Addr:     cfg.SMTP.Addr,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}
	}
	return notify.NewLimited(s, cfg.Notify.RatePerMinute)
}
