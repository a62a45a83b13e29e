package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/palletwatch/internal/metrics"
	"github.com/roach88/palletwatch/internal/poll"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Once bool

	// app overrides collaborators (for testing).
	app appOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(rootOpts, appOptions{})
}

func newRunCommand(rootOpts *RootOptions, app appOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, app: app}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the mail spool and send reminders",
		Long: `Start the polling loop.

Every poll.interval_seconds the loop lists the mail spool, records new
pallet-return events, fills driver and tractor data into the spreadsheet
and runs the reminder sweep. SIGINT and SIGTERM stop it after the current
cycle.

Example:
  palletwatch run --config /etc/palletwatch.yml
  palletwatch run --config ./palletwatch.yml --once --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single cycle and exit")

	return cmd
}

// runLoop runs poll cycles until SIGINT or SIGTERM, or runs exactly one
// cycle with --once. Startup failures exit with ExitCommandError; failed
// cycles are logged and the loop continues.
func runLoop(opts *RunOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger, opts.app)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	defer a.close()
	if err := a.attachMail(); err != nil {
		return WrapExitError(ExitCommandError, "failed to open mail spool", err)
	}

	if opts.Once {
		report, err := a.loop.RunCycle(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "cycle failed", err)
		}
		return opts.formatter(cmd).Success(newCycleView(report))
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("palletwatch starting",
		"spool", cfg.SpoolPath(),
		"table", cfg.Table.Path,
		"records", cfg.Records.Path,
		"timezone", cfg.Timezone,
	)
	err = a.loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "poll loop stopped", err)
	}
	logger.Info("palletwatch stopped gracefully")
	return nil
}

// serveMetrics exposes /metrics on addr in the background. The caller shuts
// the server down.
func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// cycleView is the printable form of a poll.CycleReport.
type cycleView struct {
	Token      string   `json:"token"`
	Started    string   `json:"started"`
	DurationMS int64    `json:"duration_ms"`
	Scanned    int      `json:"scanned"`
	Filtered   int      `json:"filtered"`
	Duplicates int      `json:"duplicates"`
	Processed  int      `json:"processed"`
	Fills      int      `json:"fills"`
	Reminders  int      `json:"reminders"`
	Errors     []string `json:"errors,omitempty"`
}

func newCycleView(r poll.CycleReport) cycleView {
	v := cycleView{
		Token:      r.Token,
		Started:    r.Started.Format(time.RFC3339),
		DurationMS: r.Duration.Milliseconds(),
		Scanned:    r.Scanned,
		Filtered:   r.Filtered,
		Duplicates: r.Duplicates,
		Processed:  r.Processed,
		Fills:      r.Fills,
		Reminders:  r.Reminders,
	}
	for _, e := range r.Errors {
		v.Errors = append(v.Errors, e.Error())
	}
	return v
}

func (v cycleView) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %s: scanned=%d filtered=%d duplicates=%d processed=%d fills=%d reminders=%d\n",
		v.Token, v.Scanned, v.Filtered, v.Duplicates, v.Processed, v.Fills, v.Reminders)
	for _, e := range v.Errors {
		fmt.Fprintf(&b, "  error: %s\n", e)
	}
	return b.String()
}
