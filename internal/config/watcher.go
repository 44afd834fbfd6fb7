package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeCallback receives the reloaded configuration
type ChangeCallback func(cfg *Config)

// Watcher reloads the config file when it changes on disk. It watches the
// parent directory so editors that replace the file are also seen.
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	debounce  time.Duration
	onChange  ChangeCallback
	logger    zerolog.Logger
	done      chan struct{}
	timer     *time.Timer
	timerMu   sync.Mutex
	stopOnce  sync.Once
	closeOnce sync.Once
}

// NewWatcher creates a watcher for the config file at path
func NewWatcher(path string, onChange ChangeCallback, logger zerolog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:  watcher,
		path:     filepath.Clean(path),
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		done:     make(chan struct{}),
	}, nil
}

// Start starts watching the config file
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().Str("path", w.path).Msg("Config watcher started")
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.timerMu.Unlock()

	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// eventLoop processes file system events
func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// schedule debounces bursts of writes into one reload
func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
			w.reload()
		}
	})
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Ignoring unreadable config change")
		return
	}

	w.logger.Debug().Msg("Config reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
