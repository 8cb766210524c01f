// Package store persists the agent controller's durable state: the
// project queue, the controller lifecycle state, and the most recent
// execution result. Implementations must provide atomic replace
// semantics so a concurrent loader never observes a partial write.
//
// Execution progress is deliberately not part of the persisted state;
// it is ephemeral and discarded across restarts.
package store

import (
	"github.com/Iron-Ham/wiggum/internal/packet"
)

// State is the durable snapshot saved after every controller mutation.
type State struct {
	// Queue holds the queued projects in priority order.
	Queue []packet.QueuedProject `json:"queue"`

	// ControllerState is the agent lifecycle state at save time.
	ControllerState string `json:"controller_state"`

	// LastResult is the most recent project execution result, if any.
	LastResult *packet.ExecutionResult `json:"last_result,omitempty"`
}

// Store is the persistence port for controller state.
type Store interface {
	// Save durably writes the state, replacing any previous snapshot
	// atomically.
	Save(state *State) error

	// Load reads the most recently saved state. Returns (nil, nil) when
	// no state has ever been saved.
	Load() (*State, error)
}
