package cmd

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MeKo-Tech/sif/internal/testutil"
)

// executeCommand runs the root command in-process with a clean flag state
// and an isolated working directory, home and config directory.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	isolate(t)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// isolate resets global command state and points config discovery at empty
// temporary directories. It is idempotent within one test.
func isolate(t *testing.T) {
	t.Helper()
	resetFlags(rootCmd)
	globalConfig = nil
	configLoader = nil

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// newCorpus writes the standard test corpus into a fresh directory.
func newCorpus(t *testing.T) testutil.CorpusLayout {
	t.Helper()
	return testutil.BuildCorpus(t, t.TempDir())
}
