package workqueue

import "sync"

// ConcurrencyStrategy controls how many tasks may run at once.
type ConcurrencyStrategy interface {
	// CanStart returns true if another task can start given current state.
	CanStart() bool
	// OnStart is called when a task starts.
	OnStart()
	// OnComplete is called when a task finishes, whatever its outcome.
	OnComplete()
}

// ThrottledStrategy allows up to maxConcurrent tasks to run in parallel.
// Remaining tasks wait in FIFO order.
type ThrottledStrategy struct {
	mu            sync.Mutex
	maxConcurrent int
	running       int
}

// NewThrottledStrategy creates a strategy admitting up to maxConcurrent tasks.
func NewThrottledStrategy(maxConcurrent int) *ThrottledStrategy {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ThrottledStrategy{maxConcurrent: maxConcurrent}
}

// NewSerializedStrategy runs one task at a time.
func NewSerializedStrategy() *ThrottledStrategy {
	return NewThrottledStrategy(1)
}

func (s *ThrottledStrategy) CanStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running < s.maxConcurrent
}

func (s *ThrottledStrategy) OnStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running++
}

func (s *ThrottledStrategy) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running > 0 {
		s.running--
	}
}

// Running returns the number of tasks currently admitted.
func (s *ThrottledStrategy) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
