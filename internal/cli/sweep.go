package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// SweepTimeLayout is the --at format, read in the configured timezone.
const SweepTimeLayout = "2006-01-02T15:04"

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	At string

	app appOptions
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return newSweepCommand(rootOpts, appOptions{})
}

func newSweepCommand(rootOpts *RootOptions, app appOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts, app: app}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the reminder rules once",
		Long: `Run one reminder sweep without reading mail.

--at evaluates the rules as if the wall clock showed that time, which is
how trigger windows are tried out against a copy of the spreadsheet. Keys
claimed by the sweep are persisted only with reminders.persist_claims.

Example:
  palletwatch sweep --config ./palletwatch.yml --at 2025-10-13T12:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "wall time "+SweepTimeLayout+" in the configured timezone (default now)")

	return cmd
}

type sweepView struct {
	At   string `json:"at"`
	Sent int    `json:"sent"`
}

func (v sweepView) Text() string {
	return fmt.Sprintf("sweep at %s: %d sent\n", v.At, v.Sent)
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load timezone", err)
	}

	now := time.Now().In(loc)
	if opts.At != "" {
		now, err = time.ParseInLocation(SweepTimeLayout, opts.At, loc)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
	}

	a, err := openApp(cmd.Context(), cfg, logger, opts.app)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize", err)
	}
	defer a.close()

	sent, err := a.scheduler.Sweep(cmd.Context(), now)
	out := opts.formatter(cmd)
	if err != nil {
		_ = out.Error(CodeRuntime, err.Error())
		return WrapExitError(ExitFailure, "sweep failed", err)
	}
	return out.Success(sweepView{At: now.Format(time.RFC3339), Sent: sent})
}
