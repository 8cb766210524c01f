package agent

import (
	"github.com/Iron-Ham/wiggum/internal/packet"
)

// State is the lifecycle state of the agent controller. It governs the
// whole controller, not individual packets.
type State string

const (
	// StateIdle indicates the controller has nothing running and no
	// pending start request.
	StateIdle State = "idle"

	// StateRunning indicates the execution loop is actively serving the
	// queue.
	StateRunning State = "running"

	// StatePaused indicates a stop was requested; the queue is intact
	// and resume will continue from the head.
	StatePaused State = "paused"

	// StateCompleted indicates the queue drained while running.
	StateCompleted State = "completed"

	// StateFailed indicates the controller gave up; currently unused by
	// the loop itself (failures deprioritize and retry) but persisted
	// states from older versions may carry it.
	StateFailed State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Status is the snapshot delivered to subscribers on every mutation and
// exposed to tooling.
type Status struct {
	// State is the controller lifecycle state.
	State State `json:"state"`

	// ActiveProject is the project currently executing, nil otherwise.
	ActiveProject *packet.Project `json:"active_project,omitempty"`

	// Progress is the live execution progress, nil when no project is
	// active. Progress is ephemeral and never persisted.
	Progress *packet.ExecutionProgress `json:"progress,omitempty"`

	// Queue is the pending projects in priority order.
	Queue []packet.QueuedProject `json:"queue"`

	// LastResult is the most recent project execution result.
	LastResult *packet.ExecutionResult `json:"last_result,omitempty"`

	// Errors are the controller-level error messages accumulated since
	// the last successful start.
	Errors []string `json:"errors,omitempty"`
}

// Listener receives status snapshots. Delivery is synchronous and
// in registration order; a listener must not block.
type Listener func(Status)

// subscription tracks one registered listener.
type subscription struct {
	id int
	fn Listener
}
