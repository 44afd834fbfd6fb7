package daemon

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/pdfbot/internal/metrics"
)

// SessionReaper expires idle sessions and reports the files still in use
type SessionReaper interface {
	Reap(idle time.Duration) int
	Referenced() map[string]bool
}

// FileSweeper deletes stale scratch files
type FileSweeper interface {
	Sweep(maxAge time.Duration, keep map[string]bool) (int, error)
}

// JanitorResult is the outcome of one janitor pass
type JanitorResult struct {
	Expired int
	Swept   int
	Err     error
}

// Janitor periodically expires idle sessions and sweeps orphaned files
type Janitor struct {
	schedule string
	idle     time.Duration
	maxAge   time.Duration
	sessions SessionReaper
	files    FileSweeper
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	// passes never overlap
	runMu sync.Mutex
	wg    sync.WaitGroup

	mu      sync.Mutex
	cron    *cron.Cron
	lastRun time.Time
	last    JanitorResult
}

// NewJanitor creates a janitor running on schedule, a standard cron
// expression or descriptor such as "@every 10m"
func NewJanitor(schedule string, idle, maxAge time.Duration, sessions SessionReaper, files FileSweeper, m *metrics.Metrics, logger zerolog.Logger) (*Janitor, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	return &Janitor{
		schedule: schedule,
		idle:     idle,
		maxAge:   maxAge,
		sessions: sessions,
		files:    files,
		metrics:  m,
		logger:   logger.With().Str("component", "janitor").Logger(),
	}, nil
}

// Start runs one pass immediately and then on schedule
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return fmt.Errorf("janitor already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	j.cron = c

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.RunOnce()
	}()
	c.Start()

	j.logger.Info().Str("schedule", j.schedule).Msg("Janitor started")
	return nil
}

// Stop halts the schedule and waits for a running pass to finish
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()
	j.wg.Wait()
	j.logger.Info().Msg("Janitor stopped")
}

// RunOnce expires idle sessions, then removes scratch files older than the
// max age that no live session references
func (j *Janitor) RunOnce() JanitorResult {
	j.runMu.Lock()
	defer j.runMu.Unlock()

	var res JanitorResult

	if j.idle > 0 {
		res.Expired = j.sessions.Reap(j.idle)
	}

	if j.maxAge > 0 {
		res.Swept, res.Err = j.files.Sweep(j.maxAge, j.sessions.Referenced())
	}

	j.metrics.RecordJanitorRun(res.Expired, res.Swept, res.Err == nil)

	logger := j.logger.Debug()
	if res.Err != nil {
		logger = j.logger.Warn().Err(res.Err)
	} else if res.Expired > 0 || res.Swept > 0 {
		logger = j.logger.Info()
	}
	logger.
		Int("expired_sessions", res.Expired).
		Int("swept_files", res.Swept).
		Msg("Janitor pass completed")

	j.mu.Lock()
	j.lastRun = time.Now()
	j.last = res
	j.mu.Unlock()

	return res
}

// LastRun returns when the last pass finished and its result
func (j *Janitor) LastRun() (time.Time, JanitorResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun, j.last
}
