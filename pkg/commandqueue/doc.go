// Package commandqueue provides lane-based task execution with FIFO ordering per lane.
//
// Invariants:
// - Tasks in the same lane execute one at a time in FIFO order.
// - Tasks in different lanes may execute concurrently.
// - A lane is dropped as soon as it has no queued or running task.
//
// Usage:
//
//	queue := commandqueue.New(commandqueue.Options{Logger: logger})
//	defer queue.Close()
//	err := queue.Submit(ctx, chatID, func(ctx context.Context) error {
//		return handle(ctx, update)
//	})
package commandqueue
