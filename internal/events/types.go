// Package events defines the event taxonomy for Wiggum: typed,
// timestamped records of agent lifecycle transitions, project execution
// milestones, and packet iteration progress. Events decouple the agent
// controller from consumers like the CLI without direct dependencies.
package events

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "project.started", "agent.paused")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Agent Lifecycle Events
// -----------------------------------------------------------------------------

// AgentStateChangedEvent is emitted when the controller transitions
// between lifecycle states (idle, running, paused, completed).
type AgentStateChangedEvent struct {
	baseEvent
	From string // Previous state
	To   string // New state
}

// NewAgentStateChangedEvent creates an AgentStateChangedEvent.
func NewAgentStateChangedEvent(from, to string) AgentStateChangedEvent {
	return AgentStateChangedEvent{
		baseEvent: newBaseEvent("agent.state_changed"),
		From:      from,
		To:        to,
	}
}

// -----------------------------------------------------------------------------
// Project Events
// -----------------------------------------------------------------------------

// ProjectStartedEvent is emitted when a project becomes active.
type ProjectStartedEvent struct {
	baseEvent
	ProjectID string // Unique identifier for the project
	Name      string // Human-readable project name
	Packets   int    // Number of work packets in the project
}

// NewProjectStartedEvent creates a ProjectStartedEvent.
func NewProjectStartedEvent(projectID, name string, packets int) ProjectStartedEvent {
	return ProjectStartedEvent{
		baseEvent: newBaseEvent("project.started"),
		ProjectID: projectID,
		Name:      name,
		Packets:   packets,
	}
}

// ProjectFinishedEvent is emitted when a project run produces its
// terminal result, successful or not.
type ProjectFinishedEvent struct {
	baseEvent
	ProjectID        string // Project the result belongs to
	Name             string // Project name at execution time
	Success          bool   // Whether every packet converged and apply succeeded
	PacketsCompleted int    // Packets that met their acceptance bar
	PacketsFailed    int    // Packets that exhausted their budget or errored
	Files            int    // Distinct files generated
	ChangeRequestURL string // Merge/pull request URL, when one was opened
}

// NewProjectFinishedEvent creates a ProjectFinishedEvent.
func NewProjectFinishedEvent(projectID, name string, success bool, completed, failed, files int, changeRequestURL string) ProjectFinishedEvent {
	return ProjectFinishedEvent{
		baseEvent:        newBaseEvent("project.finished"),
		ProjectID:        projectID,
		Name:             name,
		Success:          success,
		PacketsCompleted: completed,
		PacketsFailed:    failed,
		Files:            files,
		ChangeRequestURL: changeRequestURL,
	}
}

// -----------------------------------------------------------------------------
// Packet Events
// -----------------------------------------------------------------------------

// PacketIterationEvent is emitted once per convergence iteration of the
// active packet.
type PacketIterationEvent struct {
	baseEvent
	ProjectID     string  // Active project
	PacketTitle   string  // Packet being converged
	Phase         string  // Generation phase of the packet
	Iteration     int     // Current iteration (1-indexed)
	MaxIterations int     // Iteration budget
	Confidence    float64 // Fraction of acceptance criteria met, in [0, 1]
	Files         int     // Cumulative distinct files generated so far
}

// NewPacketIterationEvent creates a PacketIterationEvent.
func NewPacketIterationEvent(projectID, packetTitle, phase string, iteration, maxIterations int, confidence float64, files int) PacketIterationEvent {
	return PacketIterationEvent{
		baseEvent:     newBaseEvent("packet.iteration"),
		ProjectID:     projectID,
		PacketTitle:   packetTitle,
		Phase:         phase,
		Iteration:     iteration,
		MaxIterations: maxIterations,
		Confidence:    confidence,
		Files:         files,
	}
}

// -----------------------------------------------------------------------------
// Queue and Error Events
// -----------------------------------------------------------------------------

// QueueChangedEvent is emitted when the queue depth changes.
type QueueChangedEvent struct {
	baseEvent
	Depth int // Number of projects currently queued
}

// NewQueueChangedEvent creates a QueueChangedEvent.
func NewQueueChangedEvent(depth int) QueueChangedEvent {
	return QueueChangedEvent{
		baseEvent: newBaseEvent("queue.changed"),
		Depth:     depth,
	}
}

// ErrorEvent is emitted for each error the controller records.
type ErrorEvent struct {
	baseEvent
	Message string // Human-readable error message
}

// NewErrorEvent creates an ErrorEvent.
func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{
		baseEvent: newBaseEvent("agent.error"),
		Message:   message,
	}
}
