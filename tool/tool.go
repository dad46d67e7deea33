// Package tool implements the function calling subsystem that lets
// capabilities invoke structured operations (retrieval, clause analysis,
// report generation) with schema validated arguments, consistent error
// handling and rich metadata for routing and discovery.
package tool

import (
	"context"
	"fmt"

	"github.com/contractguard/contractguard/internal/util"
)

// Tool defines the interface for everything the dispatcher can invoke.
//
// Tools are registered once at startup in a dispatch table keyed by name;
// a capability may only reach the tools its registry entry permits.
//
// Implementations should:
//   - Provide clear, descriptive names (snake_case) and descriptions
//   - Define a JSON schema for parameters
//   - Honor context cancellation and deadlines
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool
	// does, used for routing context and the discovery surface.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with already-decoded arguments. Arguments are
	// validated against the tool's schema before the implementation runs.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed
// information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Error codes carried by ToolError. Validation and not-found failures are
// never retried by the dispatcher.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeExecution  = "EXECUTION_ERROR"
)
