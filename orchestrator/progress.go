package orchestrator

import "sync"

// Status is the lifecycle state of one tracked task.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressState is the reportable state of one task. ID is unique within a
// tracker even when descriptions collide. Total is -1 while unknown.
type ProgressState struct {
	ID          int
	Description string
	Completed   int64
	Total       int64
	Status      Status
	Reason      string
}

// Tracker aggregates per-task progress. Workers only emit updates through the
// task handle; completed counts never go backwards.
type Tracker struct {
	mu    sync.Mutex
	tasks []*ProgressState
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Task registers a new pending task and returns its update handle.
func (t *Tracker) Task(description string) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := &ProgressState{
		ID:          len(t.tasks),
		Description: description,
		Total:       -1,
		Status:      StatusPending,
	}
	t.tasks = append(t.tasks, state)
	return &Task{tracker: t, state: state}
}

// Snapshot returns a copy of all task states in registration order.
func (t *Tracker) Snapshot() []ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ProgressState, len(t.tasks))
	for i, state := range t.tasks {
		out[i] = *state
	}
	return out
}

// Counts returns how many tasks finished in each terminal state.
func (t *Tracker) Counts() (succeeded, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, state := range t.tasks {
		switch state.Status {
		case StatusSuccess:
			succeeded++
		case StatusFailed:
			failed++
		}
	}
	return succeeded, failed
}

// Task is the single-owner update handle for one tracked task.
type Task struct {
	tracker *Tracker
	state   *ProgressState
}

func (t *Task) Start() {
	t.tracker.mu.Lock()
	defer t.tracker.mu.Unlock()
	if t.state.Status == StatusPending {
		t.state.Status = StatusRunning
	}
}

// Advance adds completed units. Negative deltas are ignored to keep the count
// monotonic.
func (t *Task) Advance(delta int64) {
	if delta <= 0 {
		return
	}
	t.tracker.mu.Lock()
	defer t.tracker.mu.Unlock()
	t.state.Completed += delta
}

// SetTotal publishes the total once it becomes known.
func (t *Task) SetTotal(total int64) {
	t.tracker.mu.Lock()
	defer t.tracker.mu.Unlock()
	t.state.Total = total
}

func (t *Task) Succeed() {
	t.tracker.mu.Lock()
	defer t.tracker.mu.Unlock()
	t.state.Status = StatusSuccess
	if t.state.Total >= 0 {
		t.state.Completed = t.state.Total
	}
}

func (t *Task) Fail(reason string) {
	t.tracker.mu.Lock()
	defer t.tracker.mu.Unlock()
	t.state.Status = StatusFailed
	t.state.Reason = reason
}
