package core

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the taxonomy surfaced at the Session/Task API
// boundary. Callers are expected to match with errors.Is.
var (
	// ErrNotFound indicates a session or task is absent or expired. The
	// caller must re-create; expired sessions are never resurrected.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation that is illegal for the task's
	// current lifecycle state (e.g. pausing a Pending task).
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict indicates a transition carried a stale revision. The
	// caller should re-fetch the task and retry.
	ErrConflict = errors.New("revision conflict")

	// ErrUnauthorized indicates a capability attempted to invoke a tool
	// outside its permitted set. This is a routing bug, never shown to end
	// users.
	ErrUnauthorized = errors.New("tool not permitted for capability")

	// ErrOverloaded indicates the dispatcher's concurrency ceiling and wait
	// queue for a collaborator are exhausted. Callers should back off.
	ErrOverloaded = errors.New("dispatcher overloaded")
)

// ToolFailure reports that a tool invocation exhausted its retry budget
// against an external collaborator. It is carried inside a ToolResult rather
// than thrown, so capability logic can decide whether a partial answer is
// still possible.
type ToolFailure struct {
	Tool     string `json:"tool"`
	Attempts int    `json:"attempts"`
	Cause    error  `json:"-"`
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("tool %s failed after %d attempts: %v", e.Tool, e.Attempts, e.Cause)
}

func (e *ToolFailure) Unwrap() error { return e.Cause }
