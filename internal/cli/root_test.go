package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, err := execute(t, "--version")
		require.NoError(t, err)

		assert.Contains(t, out, "pdfbot version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, err := execute(t, "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "Telegram bot")
		assert.Contains(t, out, "PDF")
	})

	t.Run("subcommands", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range GetRootCmd().Commands() {
			names[c.Name()] = true
		}
		for _, name := range []string{"start", "stop", "status", "configure"} {
			assert.True(t, names[name], "%s command should exist", name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "info", logLevelFlag.DefValue)
	})
}

func TestLoadConfig(t *testing.T) {
	path, dataDir := writeTestConfig(t, map[string]interface{}{
		"logging": map[string]interface{}{"level": "warn"},
	})

	cfgFile = path
	defer func() { cfgFile = "" }()

	cfg, loader, err := loadConfig(statusCmd)
	require.NoError(t, err)
	assert.Equal(t, path, loader.GetConfigPath())
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}
