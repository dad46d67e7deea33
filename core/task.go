package core

import (
	"context"
	"time"
)

// TaskState is one node of the task lifecycle state machine.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskPaused    TaskState = "paused"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether no transitions leave this state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the edge s -> next exists in the lifecycle
// state machine:
//
//	Pending -> Running | Cancelled
//	Running -> Paused | Completed | Failed | Cancelled
//	Paused  -> Running | Cancelled
//
// Completed, Failed and Cancelled are terminal.
func (s TaskState) CanTransition(next TaskState) bool {
	switch s {
	case TaskPending:
		return next == TaskRunning || next == TaskCancelled
	case TaskRunning:
		return next == TaskPaused || next == TaskCompleted || next == TaskFailed || next == TaskCancelled
	case TaskPaused:
		return next == TaskRunning || next == TaskCancelled
	}
	return false
}

// TaskInput is the payload a task is submitted with.
type TaskInput struct {
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// TaskResult is the terminal payload of a completed task.
type TaskResult struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources,omitempty"`
	Capability string   `json:"capability"`
	Degraded   bool     `json:"degraded,omitempty"`
}

// StepResult records one completed pipeline step so a paused task can resume
// without re-executing it.
type StepResult struct {
	Name        string    `json:"name"`
	Output      string    `json:"output,omitempty"`
	Sources     []Source  `json:"sources,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Task is a durable, resumable unit of orchestrated work. The Revision
// counter acts as an optimistic lock: every transition must carry the
// revision it read, and a stale revision is rejected with ErrConflict, so at
// most one state transition is in flight per task.
type Task struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	State     TaskState    `json:"state"`
	Input     TaskInput    `json:"input"`
	Progress  int          `json:"progress"`
	Steps     []StepResult `json:"steps,omitempty"`
	Result    *TaskResult  `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	Revision  int64        `json:"revision"`
	Created   time.Time    `json:"created"`
	Updated   time.Time    `json:"updated"`
}

// NewTask creates a Pending task bound to a session.
func NewTask(sessionID string, input TaskInput) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        NewID(),
		SessionID: sessionID,
		State:     TaskPending,
		Input:     input,
		Created:   now,
		Updated:   now,
	}
}

// CompletedStep reports whether the named pipeline step already has a
// recorded result. Resumption skips such steps.
func (t *Task) CompletedStep(name string) (StepResult, bool) {
	for _, s := range t.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Clone returns a deep copy safe for independent mutation.
func (t *Task) Clone() *Task {
	clone := *t
	clone.Steps = make([]StepResult, len(t.Steps))
	copy(clone.Steps, t.Steps)
	if t.Result != nil {
		r := *t.Result
		clone.Result = &r
	}
	clone.Input.DocumentIDs = append([]string(nil), t.Input.DocumentIDs...)
	return &clone
}

// TaskFilter narrows List results. Zero values mean "any".
type TaskFilter struct {
	State     TaskState
	SessionID string
	Limit     int
}

// TaskStore persists tasks. Update implements the optimistic lock: the write
// succeeds only when the stored revision still equals expected, in which case
// the stored task carries revision expected+1; otherwise ErrConflict.
type TaskStore interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, filter TaskFilter) ([]*Task, error)
	Update(ctx context.Context, task *Task, expected int64) error
	Delete(ctx context.Context, id string) error
}
