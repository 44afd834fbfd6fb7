package daemon

import (
	"context"
	"time"
)

// heartbeatInterval is how often the event loop reports daemon state
const heartbeatInterval = 30 * time.Second

// EventLoop handles the periodic heartbeat of a running daemon
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: heartbeatInterval,
	}
}

// Run runs the event loop until ctx is cancelled
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.heartbeat()
		}
	}
}

// heartbeat refreshes the session gauge and logs activity
func (e *EventLoop) heartbeat() {
	sessions := e.daemon.sessions.Len()
	lanes := e.daemon.queue.Lanes()
	e.daemon.metrics.SetActiveSessions(sessions)

	if sessions == 0 && lanes == 0 {
		return
	}

	event := e.daemon.logger.Debug().
		Int("sessions", sessions).
		Int("lanes", lanes)

	if usage, err := e.daemon.files.DiskUsage(); err == nil {
		event = event.Str("scratch", usage.Human)
	}

	event.Msg("Daemon heartbeat")
}

// HandleShutdown waits for running operations to finish
func (e *EventLoop) HandleShutdown(timeout time.Duration) {
	e.daemon.logger.Info().Msg("Handling graceful shutdown")

	if !e.daemon.queue.WaitForActive(timeout) {
		e.daemon.logger.Warn().Dur("timeout", timeout).Msg("Operations still running at shutdown")
		return
	}

	e.daemon.logger.Info().Msg("All active tasks completed")
}
