package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "palletwatch", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "sweep", "extract", "ledger"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	for flag, def := range map[string]string{
		"format":     "text",
		"log-format": "text",
		"config":     DefaultConfigPath,
	} {
		f := cmd.PersistentFlags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, def, f.DefValue, flag)
	}

	once := mustFind(t, "run").Flags().Lookup("once")
	require.NotNil(t, once)
	assert.Equal(t, "false", once.DefValue)
	assert.NotNil(t, mustFind(t, "sweep").Flags().Lookup("at"))
	assert.NotNil(t, mustFind(t, "extract").Flags().Lookup("received"))
}

func mustFind(t *testing.T, name string) *cobra.Command {
	t.Helper()
	sub, _, err := NewRootCommand().Find([]string{name})
	require.NoError(t, err)
	return sub
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, NewRootCommand(), "ledger", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)

	_, err = execute(t, NewRootCommand(), "ledger", "--log-format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log format "xml"`)
}

func TestRootOptions_Logger(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &RootOptions{LogFormat: "json"}
	logger := opts.logger(buf)
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	opts = &RootOptions{Verbose: true, LogFormat: "text"}
	opts.logger(buf).Debug("visible")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.True(t, opts.logger(buf).Enabled(context.Background(), slog.LevelDebug))
}
