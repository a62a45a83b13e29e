package remind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/palletwatch/internal/metrics"
	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/notify"
)

// DispatchError reports a claimed key whose notification could not be
// delivered. The key stays claimed.
type DispatchError struct {
	Key model.DispatchKey
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Key, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Options configures a Scheduler. Classifier, Source and Sender are
// required.
type Options struct {
	Classifier *Classifier
	Source     Source
	Sender     notify.Sender
	// Claims defaults to a fresh MemoryClaims.
	Claims Claims
	// Renderer defaults to NewRenderer().
	Renderer *Renderer
	// Window defaults to DefaultWindow.
	Window time.Duration
	// Location is the zone trigger marks are evaluated in. Defaults to
	// the location of the sweep time.
	Location *time.Location
	Logger   *slog.Logger
}

// Scheduler evaluates reminder rules against sweep targets.
type Scheduler struct {
	classifier *Classifier
	source     Source
	sender     notify.Sender
	claims     Claims
	renderer   *Renderer
	window     time.Duration
	loc        *time.Location
	logger     *slog.Logger
}

// New returns a Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Classifier == nil {
		return nil, errors.New("remind: classifier required")
	}
	if opts.Source == nil {
		return nil, errors.New("remind: source required")
	}
	if opts.Sender == nil {
		return nil, errors.New("remind: sender required")
	}
	s := &Scheduler{
		classifier: opts.Classifier,
		source:     opts.Source,
		sender:     opts.Sender,
		claims:     opts.Claims,
		renderer:   opts.Renderer,
		window:     opts.Window,
		loc:        opts.Location,
		logger:     opts.Logger,
	}
	if s.claims == nil {
		s.claims = NewMemoryClaims()
	}
	if s.renderer == nil {
		s.renderer = NewRenderer()
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

type dueRule struct {
	rule Rule
	kind string
	hour int
}

// due returns the rules of c that fire for t at now. now must already be
// in the scheduler's location.
func (s *Scheduler) due(c Category, t Target, trigger model.Date, now time.Time) []dueRule {
	if model.DateOf(now) != trigger {
		return nil
	}
	var out []dueRule
	missing := len(c.Missing(t.Row)) > 0
	if missing {
		mark := c.NeedDataAt.On(trigger, now.Location())
		if inWindow(mark, now, s.window) {
			out = append(out, dueRule{rule: RuleNeedData, kind: c.NeedDataKind()})
		}
	}
	if c.ConfirmPass && !missing {
		h := now.Hour()
		mark := trigger.At(h, 0, now.Location())
		if h >= c.ConfirmFrom && h <= c.ConfirmUntil && inWindow(mark, now, s.window) {
			out = append(out, dueRule{rule: RuleConfirmPass, kind: c.ConfirmPassKind(h), hour: h})
		}
	}
	return out
}

// Sweep evaluates every target at now and sends the reminders that are
// due. It returns the number of notifications delivered.
//
// A failing source aborts the sweep. Per-target failures are contained:
// they are logged and returned joined as *DispatchError values alongside
// the count.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.loc != nil {
		now = now.In(s.loc)
	}

	targets, err := s.source.Targets(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("remind: list targets: %w", err)
	}

	sent := 0
	var errs []error
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		c, class := s.classifier.Classify(t.Label)
		switch class {
		case Excluded:
			s.logger.Debug("partner excluded from reminders",
				"label", t.Label, "date", t.ReturnDate, "center", t.Center)
			continue
		case Unclassified:
			continue
		}

		trigger := TriggerDate(c.Kind, t.ReturnDate)
		for _, d := range s.due(c, t, trigger, now) {
			ok, err := s.dispatch(ctx, c, t, trigger, d)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				sent++
			}
		}
	}
	return sent, errors.Join(errs...)
}

func (s *Scheduler) dispatch(ctx context.Context, c Category, t Target, trigger model.Date, d dueRule) (bool, error) {
	key := model.DispatchKey{Date: t.ReturnDate, Center: t.Center, Kind: d.kind}
	log := s.logger.With("key", key.String(), "category", c.Name, "rule", string(d.rule))

	won, err := s.claims.Claim(ctx, key)
	if err != nil {
		log.Warn("claim failed", "error", err)
		metrics.RemindersSent.WithLabelValues(c.Name, string(d.rule), "claim_failed").Inc()
		return false, &DispatchError{Key: key, Err: err}
	}
	if !won {
		log.Debug("already dispatched")
		return false, nil
	}

	if len(c.Recipients) == 0 {
		log.Warn("no recipients configured")
		metrics.RemindersSent.WithLabelValues(c.Name, string(d.rule), "failed").Inc()
		return false, &DispatchError{Key: key, Err: notify.ErrNoRecipients}
	}

	subject, body, err := s.renderer.Render(templateFor(c.Kind, d.rule), newMessageData(c, d.rule, t, trigger, d.hour))
	if err != nil {
		log.Error("render failed", "error", err)
		metrics.RemindersSent.WithLabelValues(c.Name, string(d.rule), "failed").Inc()
		return false, &DispatchError{Key: key, Err: err}
	}

	msg := notify.Message{
		To:      append([]string(nil), c.Recipients...),
		Subject: subject,
		Body:    body,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		log.Warn("send failed", "error", err)
		metrics.RemindersSent.WithLabelValues(c.Name, string(d.rule), "failed").Inc()
		return false, &DispatchError{Key: key, Err: err}
	}

	log.Info("reminder sent", "to", msg.To, "return_date", t.ReturnDate.String())
	metrics.RemindersSent.WithLabelValues(c.Name, string(d.rule), "sent").Inc()
	return true, nil
}
