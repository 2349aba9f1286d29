package workqueue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("work queue is shut down")

// Queue runs tasks in the background with configurable concurrency control.
// It is long-lived: tasks are admitted in FIFO order as the strategy allows,
// and forgotten once they reach a terminal state. Callers that need the
// outcome record it themselves from inside Execute.
type Queue struct {
	mu      sync.Mutex
	pending []*taskState
	tasks   map[string]*taskState // pending and running, by task ID
	closed  bool

	strategy ConcurrencyStrategy

	// idle is closed whenever no task is pending or running
	idle chan struct{}
	wg   sync.WaitGroup

	// Parent of every task context; cancelled by Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithStrategy sets the concurrency strategy.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.strategy = strategy
		}
	}
}

// WithMaxConcurrent admits up to n tasks at once.
func WithMaxConcurrent(n int) QueueOption {
	return WithStrategy(NewThrottledStrategy(n))
}

// New creates a new work queue. Without options it runs one task at a time.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		tasks:    make(map[string]*taskState),
		strategy: NewSerializedStrategy(),
		idle:     idle,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("workqueue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue adds a task to the queue and starts it if a slot is free.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Warn("queue shut down, rejecting task",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return ErrQueueClosed
	}
	if _, exists := q.tasks[task.ID()]; exists {
		return fmt.Errorf("task %s is already queued", task.ID())
	}

	q.resetIdleLocked()

	state := newTaskState(task)
	q.tasks[task.ID()] = state
	q.pending = append(q.pending, state)

	q.logger.Info("task enqueued",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.Int("pending", len(q.pending)))

	q.tryStartTasksLocked()
	return nil
}

// tryStartTasksLocked starts pending tasks while the strategy has room.
// Must be called with lock held.
func (q *Queue) tryStartTasksLocked() {
	for len(q.pending) > 0 && !q.closed && q.strategy.CanStart() {
		ts := q.pending[0]
		q.pending = q.pending[1:]

		q.strategy.OnStart()
		ctx, cancel := context.WithCancel(q.ctx)
		ts.cancel = cancel
		ts.setStatus(TaskStatusRunning)

		q.logger.Info("starting task",
			zap.String("task_id", ts.task.ID()),
			zap.String("task_name", ts.task.Name()))

		q.wg.Add(1)
		go q.runTask(ctx, ts)
	}
}

func (q *Queue) runTask(ctx context.Context, ts *taskState) {
	defer q.wg.Done()
	err := q.execute(ctx, ts)
	q.completeTask(ctx, ts, err)
}

// execute runs the task, converting a panic into an error so that one bad
// task cannot take the queue down with it.
func (q *Queue) execute(ctx context.Context, ts *taskState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked",
				zap.String("task_id", ts.task.ID()),
				zap.Any("panic", r))
			err = fmt.Errorf("task %w: %v", ErrPanicked, r)
		}
	}()
	return ts.task.Execute(ctx)
}

func (q *Queue) completeTask(ctx context.Context, ts *taskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.strategy.OnComplete()
	ts.cancel()
	delete(q.tasks, ts.task.ID())

	switch {
	case err == nil:
		ts.setStatus(TaskStatusCompleted)
		q.logger.Info("task completed",
			zap.String("task_id", ts.task.ID()),
			zap.String("task_name", ts.task.Name()))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		ts.setStatus(TaskStatusCancelled)
		q.logger.Info("task cancelled",
			zap.String("task_id", ts.task.ID()),
			zap.String("task_name", ts.task.Name()))
	default:
		ts.setStatus(TaskStatusFailed)
		q.logger.Error("task failed",
			zap.String("task_id", ts.task.ID()),
			zap.String("task_name", ts.task.Name()),
			zap.Error(err))
	}

	q.tryStartTasksLocked()
	q.closeIdleIfDoneLocked()
}

// Cancel stops a single task. A pending task is removed before it runs and,
// if it implements PendingCanceller, told so. A running task has its context
// cancelled and finishes on its own. The returned status is the one the task
// had when Cancel was called; ok is false when the ID is unknown, which
// includes tasks that already finished.
func (q *Queue) Cancel(taskID string) (status TaskStatus, ok bool) {
	q.mu.Lock()

	ts, ok := q.tasks[taskID]
	if !ok {
		q.mu.Unlock()
		return "", false
	}

	status = ts.getStatus()
	switch status {
	case TaskStatusPending:
		q.pending = slices.DeleteFunc(q.pending, func(p *taskState) bool { return p == ts })
		delete(q.tasks, taskID)
		ts.setStatus(TaskStatusCancelled)
		q.closeIdleIfDoneLocked()
	case TaskStatusRunning:
		ts.cancel()
	}

	q.logger.Info("task cancel requested",
		zap.String("task_id", taskID),
		zap.String("status", string(status)))
	q.mu.Unlock()

	if status == TaskStatusPending {
		if pc, isPC := ts.task.(PendingCanceller); isPC {
			pc.CancelPending()
		}
	}
	return status, true
}

// Shutdown stops accepting tasks, cancels everything pending or running and
// waits for running tasks to return or for ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	var abandoned []*taskState
	if !q.closed {
		q.closed = true
		q.logger.Info("queue shutting down, signaling running tasks to stop",
			zap.Int("pending", len(q.pending)),
			zap.Int("running", len(q.tasks)-len(q.pending)))

		q.cancel()

		abandoned = q.pending
		q.pending = nil
		for _, ts := range abandoned {
			delete(q.tasks, ts.task.ID())
			ts.setStatus(TaskStatusCancelled)
		}
		q.closeIdleIfDoneLocked()
	}
	q.mu.Unlock()

	for _, ts := range abandoned {
		if pc, ok := ts.task.(PendingCanceller); ok {
			pc.CancelPending()
		}
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until no task is pending or running, or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the status of a pending or running task.
func (q *Queue) Status(taskID string) (TaskStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts, ok := q.tasks[taskID]
	if !ok {
		return "", false
	}
	return ts.getStatus(), true
}

// Progress returns a summary of queued work.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Progress{
		Pending: len(q.pending),
		Running: len(q.tasks) - len(q.pending),
	}
}

// Progress holds queue occupancy.
type Progress struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
}

// closeIdleIfDoneLocked closes the idle channel when nothing is left.
// Must be called with lock held.
func (q *Queue) closeIdleIfDoneLocked() {
	if len(q.tasks) > 0 {
		return
	}
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

// resetIdleLocked recreates the idle channel if it was closed.
// Must be called with lock held.
func (q *Queue) resetIdleLocked() {
	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}
}
