package workqueue

import (
	"context"
	"sync"
)

// TaskStatus is where a task is in its lifecycle.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the task will not change state again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task is a unit of background work.
type Task interface {
	// ID is unique within the queue. Cancel looks tasks up by it.
	ID() string
	// Name is used in logs only.
	Name() string
	// Execute runs the task. ctx is cancelled when the task is cancelled
	// individually or when the queue shuts down.
	Execute(ctx context.Context) error
}

// PendingCanceller is implemented by tasks that record their own outcome
// when they are cancelled before they start.
type PendingCanceller interface {
	CancelPending()
}

// taskState is the queue's bookkeeping for one admitted task.
type taskState struct {
	task   Task
	cancel context.CancelFunc

	mu     sync.Mutex
	status TaskStatus
}

func newTaskState(task Task) *taskState {
	return &taskState{task: task, status: TaskStatusPending}
}

func (ts *taskState) getStatus() TaskStatus {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.status
}

func (ts *taskState) setStatus(status TaskStatus) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.status = status
}

// BaseTask supplies ID and Name. Embed it in concrete tasks.
type BaseTask struct {
	id   string
	name string
}

// NewBaseTask creates a base task. The caller picks the id so that it can
// match an identifier it already hands out.
func NewBaseTask(id, name string) BaseTask {
	return BaseTask{id: id, name: name}
}

func (t BaseTask) ID() string   { return t.id }
func (t BaseTask) Name() string { return t.name }
