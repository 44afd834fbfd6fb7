package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/pdfbot/internal/tracing"
)

const tracerName = "pdfbot.commandqueue"

var (
	// ErrClosed is returned when submitting to a closed queue
	ErrClosed = errors.New("command queue closed")
	// ErrDuplicate is returned when a request id was already submitted
	ErrDuplicate = errors.New("duplicate request")
)

// Task is one unit of work executed in a lane
type Task func(ctx context.Context) error

// Options configures a CommandQueue
type Options struct {
	// DedupTTL is how long request ids passed to SubmitOnce are remembered
	DedupTTL time.Duration
	// WarnAfter logs tasks that waited in their lane longer than this
	WarnAfter time.Duration
	// OnLanesChanged is called with the number of active lanes. It runs
	// under the queue lock and must not call back into the queue.
	OnLanesChanged func(lanes int)
	Logger         zerolog.Logger
}

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
}

// laneState holds the pending tasks of one lane. A lane exists only while
// it has queued or running work.
type laneState struct {
	queue   []*taskRecord
	running bool
}

// CommandQueue runs tasks in lanes. Tasks of one lane run one at a time in
// submission order; lanes run concurrently.
type CommandQueue struct {
	lanes     map[string]*laneState
	taskIDSeq uint64
	closed    bool
	mu        sync.Mutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	dedup     *dedupCache
	warnAfter time.Duration
	onLanes   func(int)
	logger    zerolog.Logger
}

// New creates a CommandQueue
func New(opts Options) *CommandQueue {
	ctx, cancel := context.WithCancel(context.Background())

	return &CommandQueue{
		lanes:     make(map[string]*laneState),
		ctx:       ctx,
		cancel:    cancel,
		dedup:     newDedupCache(ctx, opts.DedupTTL),
		warnAfter: opts.WarnAfter,
		onLanes:   opts.OnLanesChanged,
		logger:    opts.Logger.With().Str("component", "commandqueue").Logger(),
	}
}

// Submit appends task to lane and returns without waiting for it. Calls
// made from one goroutine keep their order within the lane.
func (cq *CommandQueue) Submit(ctx context.Context, lane string, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracing.GetConversation(ctx) == "" {
		ctx = tracing.WithConversation(ctx, lane)
	}

	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		return ErrClosed
	}

	cq.taskIDSeq++
	record := &taskRecord{
		id:         fmt.Sprintf("%s-%d", lane, cq.taskIDSeq),
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
	}

	ls, exists := cq.lanes[lane]
	if !exists {
		ls = &laneState{}
		cq.lanes[lane] = ls
	}
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)

	start := !ls.running
	if start {
		ls.running = true
		cq.wg.Add(1)
	}
	if !exists {
		cq.lanesChanged(len(cq.lanes))
	}
	cq.mu.Unlock()

	logger := tracing.LoggerFromContext(ctx, cq.logger)
	logger.Debug().
		Str("lane", lane).
		Str("task_id", record.id).
		Int("queue_size", queueSize).
		Msg("Task enqueued")

	if start {
		go cq.drain(lane, ls)
	}
	return nil
}

// SubmitOnce submits task unless requestID was seen within the dedup TTL
func (cq *CommandQueue) SubmitOnce(ctx context.Context, lane, requestID string, task Task) error {
	if !cq.dedup.Mark(requestID) {
		cq.logger.Debug().Str("lane", lane).Str("request_id", requestID).Msg("Duplicate request ignored")
		return ErrDuplicate
	}
	return cq.Submit(ctx, lane, task)
}

// Enqueue submits task and waits for it to finish
func (cq *CommandQueue) Enqueue(ctx context.Context, lane string, task Task) error {
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan error, 1)
	err := cq.Submit(ctx, lane, func(ctx context.Context) error {
		err := cq.run(ctx, task)
		done <- err
		return err
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs the tasks of lane until it is empty, then drops the lane
func (cq *CommandQueue) drain(lane string, ls *laneState) {
	defer cq.wg.Done()

	for {
		cq.mu.Lock()
		if len(ls.queue) == 0 {
			ls.running = false
			delete(cq.lanes, lane)
			cq.lanesChanged(len(cq.lanes))
			cq.mu.Unlock()
			return
		}
		record := ls.queue[0]
		ls.queue[0] = nil
		ls.queue = ls.queue[1:]
		cq.mu.Unlock()

		cq.execute(lane, record)
	}
}

// execute runs a single task, recovering panics
func (cq *CommandQueue) execute(lane string, record *taskRecord) {
	ctx, span := tracing.StartSpan(
		record.ctx,
		tracerName,
		"commandqueue.execute_task",
		attribute.String("lane", lane),
		attribute.String("task_id", record.id),
	)
	logger := tracing.LoggerFromContext(ctx, cq.logger).With().Str("lane", lane).Logger()

	wait := time.Since(record.enqueuedAt)
	if cq.warnAfter > 0 && wait > cq.warnAfter {
		logger.Warn().
			Str("task_id", record.id).
			Dur("wait", wait).
			Msg("Task waited longer than expected")
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopCancel := context.AfterFunc(cq.ctx, cancel)

	startTime := time.Now()
	err := cq.run(runCtx, record.task)
	duration := time.Since(startTime)

	stopCancel()
	cancel()
	tracing.EndSpan(span, err)

	if err != nil {
		logger.Error().
			Str("task_id", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
		return
	}
	logger.Debug().
		Str("task_id", record.id).
		Dur("duration", duration).
		Msg("Task completed")
}

func (cq *CommandQueue) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// lanesChanged reports the lane count. Callers hold mu.
func (cq *CommandQueue) lanesChanged(n int) {
	if cq.onLanes != nil {
		cq.onLanes(n)
	}
}

// Lanes returns the number of lanes with queued or running tasks
func (cq *CommandQueue) Lanes() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return len(cq.lanes)
}

// Pending returns the number of tasks waiting in lane, excluding the running one
func (cq *CommandQueue) Pending(lane string) int {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	if ls, exists := cq.lanes[lane]; exists {
		return len(ls.queue)
	}
	return 0
}

// WaitForActive waits until every lane is drained. It reports false on timeout.
func (cq *CommandQueue) WaitForActive(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cq.Lanes() == 0 {
			cq.logger.Info().Msg("All active tasks completed")
			return true
		}

		if time.Now().After(deadline) {
			cq.logger.Warn().Dur("timeout", timeout).Int("lanes", cq.Lanes()).Msg("Timeout waiting for active tasks")
			return false
		}

		<-ticker.C
	}
}

// Close rejects new tasks, cancels running ones and waits for the lanes to stop.
// Tasks still queued run with a cancelled context.
func (cq *CommandQueue) Close() error {
	cq.mu.Lock()
	cq.closed = true
	cq.mu.Unlock()

	cq.cancel()
	cq.wg.Wait()
	return nil
}
