// Package errors provides centralized error definitions and error handling
// utilities for the Wiggum codebase. It defines domain-specific errors,
// sentinel errors, constructors with context wrapping, and classification
// helpers.
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewQueueError("enqueue", projectID, errors.ErrProjectQueued)
//
//	// Convergence failure
//	err := errors.NewMaxIterationsError(packetID, 15, 0.5)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrQueueEmpty) { ... }
//
//	var maxErr *errors.MaxIterationsError
//	if errors.As(err, &maxErr) { ... }
//
//	if errors.IsStop(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Queue-related sentinel errors
var (
	// ErrQueueEmpty indicates the controller was started with nothing to run.
	ErrQueueEmpty = New("project queue is empty")
	// ErrProjectNotFound indicates a project id is not present in the queue.
	ErrProjectNotFound = New("project not found in queue")
	// ErrProjectActive indicates an operation targeted the currently active project.
	ErrProjectActive = New("project is currently active")
)

// Lifecycle-related sentinel errors
var (
	// ErrNotRunning indicates a stop was requested outside the running state.
	ErrNotRunning = New("agent is not running")
	// ErrNotPaused indicates a resume was requested outside the paused state.
	ErrNotPaused = New("agent is not paused")
)

// Execution sentinel errors
var (
	// ErrStopped indicates execution ended because of a deliberate stop request.
	ErrStopped = New("execution stopped")
	// ErrInterrupted indicates a packet was cancelled mid-convergence and is
	// neither completed nor failed.
	ErrInterrupted = New("packet interrupted")
)

// QueueError represents an error from a queue operation.
type QueueError struct {
	// Op is the queue operation that failed (e.g. "enqueue", "reorder").
	Op string
	// ProjectID is the project involved, if any.
	ProjectID string
	// Err is the underlying error.
	Err error
}

// NewQueueError creates a QueueError wrapping the given cause.
func NewQueueError(op, projectID string, err error) *QueueError {
	return &QueueError{Op: op, ProjectID: projectID, Err: err}
}

// Error returns the error message.
func (e *QueueError) Error() string {
	if e.ProjectID != "" {
		return fmt.Sprintf("queue %s %s: %v", e.Op, e.ProjectID, e.Err)
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueueError) Unwrap() error {
	return e.Err
}

// ExecutionError represents a failure while executing a project or packet.
type ExecutionError struct {
	// ProjectID is the project being executed.
	ProjectID string
	// PacketID is the packet being executed, if the failure is packet-scoped.
	PacketID string
	// Err is the underlying error.
	Err error
}

// NewExecutionError creates an ExecutionError wrapping the given cause.
func NewExecutionError(projectID, packetID string, err error) *ExecutionError {
	return &ExecutionError{ProjectID: projectID, PacketID: packetID, Err: err}
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	if e.PacketID != "" {
		return fmt.Sprintf("execute project %s packet %s: %v", e.ProjectID, e.PacketID, e.Err)
	}
	return fmt.Sprintf("execute project %s: %v", e.ProjectID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// MaxIterationsError indicates a packet exhausted its iteration budget
// without reaching the confidence threshold.
type MaxIterationsError struct {
	// PacketID is the packet that failed to converge.
	PacketID string
	// Iterations is the number of iterations consumed.
	Iterations int
	// FinalConfidence is the confidence from the last critique.
	FinalConfidence float64
}

// NewMaxIterationsError creates a MaxIterationsError.
func NewMaxIterationsError(packetID string, iterations int, confidence float64) *MaxIterationsError {
	return &MaxIterationsError{
		PacketID:        packetID,
		Iterations:      iterations,
		FinalConfidence: confidence,
	}
}

// Error returns the error message.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("packet %s did not converge after %d iterations (confidence %.2f)",
		e.PacketID, e.Iterations, e.FinalConfidence)
}

// ApplyError indicates the code applier failed to apply generated changes.
type ApplyError struct {
	// Branch is the branch the changes were being applied to.
	Branch string
	// Messages are the applier's error strings.
	Messages []string
}

// NewApplyError creates an ApplyError.
func NewApplyError(branch string, messages []string) *ApplyError {
	return &ApplyError{Branch: branch, Messages: messages}
}

// Error returns the error message with every applier message included.
func (e *ApplyError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("apply to branch %s failed", e.Branch)
	}
	return fmt.Sprintf("apply to branch %s failed: %s", e.Branch, strings.Join(e.Messages, "; "))
}

// IsStop returns true if the error represents a deliberate stop or
// cancellation rather than a genuine failure.
func IsStop(err error) bool {
	return Is(err, ErrStopped) || Is(err, ErrInterrupted)
}
