package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pdfbot.json")
	write := func(level string) {
		content := `{"data_dir": "` + tmpDir + `", "logging": {"level": "` + level + `"}}`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	}
	write("info")

	changes := make(chan *Config, 4)
	w, err := NewWatcher(configPath, func(cfg *Config) { changes <- cfg }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "other.json"), []byte("{}"), 0600))

	write("debug")

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestWatcherIgnoresBrokenFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pdfbot.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0600))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(configPath, func(cfg *Config) { changes <- cfg }, zerolog.Nop())
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(configPath, []byte("not json"), 0600))

	select {
	case <-changes:
		t.Fatal("broken config must not be delivered")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNewWatcherRequiresPath(t *testing.T) {
	_, err := NewWatcher("", nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestWatcherStopTwice(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "pdfbot.json"), nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start())

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
