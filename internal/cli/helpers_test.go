package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a config file rooted in a temp dir and returns its
// path and the data dir
func writeTestConfig(t *testing.T, overrides map[string]interface{}) (string, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	dataDir := filepath.Join(dir, "data")
	doc := map[string]interface{}{
		"data_dir": dataDir,
		"admin":    map[string]interface{}{"enabled": false},
	}
	for k, v := range overrides {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "pdfbot.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path, dataDir
}

// execute runs the root command with args and returns its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	t.Cleanup(func() {
		cmd.SetIn(nil)
		resetFlags(cmd)
	})

	err := cmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag of cmd and its children to its default,
// since the command tree is shared between tests
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
