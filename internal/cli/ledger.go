package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/palletwatch/internal/ledger"
	"github.com/roach88/palletwatch/internal/store"
)

// NewLedgerCommand creates the ledger command.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List processed message ids",
		Long: `Print every message id the processed ledger holds, in insertion order.

The ledger is append-only; ids are never removed by palletwatch.

Example:
  palletwatch ledger --config ./palletwatch.yml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedger(rootOpts, cmd)
		},
	}
	return cmd
}

type ledgerView struct {
	Backend string   `json:"backend"`
	Count   int      `json:"count"`
	IDs     []string `json:"ids"`
}

func (v ledgerView) Text() string {
	var b strings.Builder
	for _, id := range v.IDs {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d processed (%s)\n", v.Count, v.Backend)
	return b.String()
}

func runLedger(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	var ids ledger.IDStore = ledger.FileIDStore{Path: cfg.Ledger.Path}
	if cfg.Ledger.Backend == "sqlite" {
		st, err := store.Open(cfg.Records.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open record store", err)
		}
		defer st.Close()
		ids = st
	}

	led, err := ledger.Open(cmd.Context(), ids, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load ledger", err)
	}
	list := led.IDs()
	if list == nil {
		list = []string{}
	}
	return opts.formatter(cmd).Success(ledgerView{Backend: cfg.Ledger.Backend, Count: len(list), IDs: list})
}
