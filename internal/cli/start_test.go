package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, err := execute(t, "start", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "Start the pdfbot daemon service")
	})

	t.Run("already running", func(t *testing.T) {
		path, dataDir := writeTestConfig(t, nil)
		writeOwnPID(t, dataDir)

		_, err := execute(t, "start", "--config", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
	})

	t.Run("invalid configuration", func(t *testing.T) {
		path, _ := writeTestConfig(t, nil)

		_, err := execute(t, "start", "--config", path, "--log-level", "warn")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}
