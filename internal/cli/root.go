package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/palletwatch/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	LogFormat string // "json" | "text"
	Config    string
}

// ValidFormats defines the allowed output and log formats.
var ValidFormats = []string{"text", "json"}

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "palletwatch.yml"

// NewRootCommand creates the root command for the palletwatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "palletwatch",
		Short: "Pallet-return mail ingestion and driver-data reminders",
		Long: `palletwatch reads pallet-return notifications from a mail spool, records
them, fills driver and tractor data into the receiving spreadsheet and
reminds partner categories when the data is still missing.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "log format on stderr (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", DefaultConfigPath, "path to the YAML configuration")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewExtractCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// logger builds the process logger writing to w.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if o.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// loadConfig reads --config. Failures map to ExitCommandError.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}
