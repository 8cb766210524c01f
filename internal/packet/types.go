// Package packet defines the core data model for Wiggum: projects, the
// work packets they contain, and the file changes produced while
// converging a packet toward its acceptance criteria.
package packet

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a work packet.
type Status string

const (
	// StatusQueued indicates the packet is waiting to be executed.
	StatusQueued Status = "queued"

	// StatusInProgress indicates the packet is actively being converged.
	StatusInProgress Status = "in_progress"

	// StatusCompleted indicates the packet met its acceptance bar.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the packet exhausted its iteration budget.
	StatusFailed Status = "failed"
)

// String returns the string representation of the packet status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// WorkPacket is the unit of work: a single feature, fix, or chore with
// acceptance criteria the generated code must satisfy. A packet belongs
// to exactly one project and is never shared.
type WorkPacket struct {
	// ID uniquely identifies the packet.
	ID string `json:"id"`

	// Title is a short human-readable summary.
	Title string `json:"title"`

	// Description is the full prompt-quality description of the work.
	Description string `json:"description"`

	// AcceptanceCriteria are the statements the generated code must
	// satisfy before the packet is considered complete.
	AcceptanceCriteria []string `json:"acceptance_criteria"`

	// Status is the current execution state.
	Status Status `json:"status"`
}

// Project groups an ordered collection of work packets against a single
// code repository.
type Project struct {
	// ID uniquely identifies the project.
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// RepoRef identifies the code repository changes are applied to.
	// The format is owner/name for hosted repositories or a local path.
	RepoRef string `json:"repo_ref"`

	// Packets are the work packets in their original authored order.
	Packets []WorkPacket `json:"packets"`
}

// NewID mints a new identifier for projects and packets that arrive
// without one (e.g. from hand-written manifests).
func NewID() string {
	return uuid.NewString()
}

// ChangeKind describes how a FileChange affects its path.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeModify ChangeKind = "modify"
	ChangeDelete ChangeKind = "delete"
)

// FileChange is a single generated change to a repository path.
// Produced by the generation backend, consumed by the code applier.
type FileChange struct {
	Path    string     `json:"path"`
	Content string     `json:"content"`
	Kind    ChangeKind `json:"kind"`
}

// MergeChanges merges incoming file changes into existing ones with
// last-write-wins semantics per path: a later change to the same path
// replaces the earlier one, while relative order of first appearance is
// preserved. The same rule applies within a packet's iterations and
// across the packets of a project.
func MergeChanges(existing, incoming []FileChange) []FileChange {
	merged := make([]FileChange, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, fc := range merged {
		index[fc.Path] = i
	}

	for _, fc := range incoming {
		if i, ok := index[fc.Path]; ok {
			merged[i] = fc
			continue
		}
		index[fc.Path] = len(merged)
		merged = append(merged, fc)
	}
	return merged
}

// QueuedProject wraps a project waiting in the agent's queue. Lower
// priority values are served first; AddedAt breaks ties FIFO.
type QueuedProject struct {
	// Project is the project to execute.
	Project Project `json:"project"`

	// Priority orders the queue; lower values are served first.
	Priority int `json:"priority"`

	// AddedAt is when the project was enqueued.
	AddedAt time.Time `json:"added_at"`
}

// DefaultPriority is the queue priority used when callers do not
// specify one.
const DefaultPriority = 10

// RetryPriority is the priority assigned when a project fails
// unexpectedly and is requeued to be retried after everything else.
const RetryPriority = 1000

// ExecutionProgress is a point-in-time snapshot of a running project.
// It exists only while the project is active and is never persisted.
type ExecutionProgress struct {
	// ProjectID identifies the active project.
	ProjectID string `json:"project_id"`

	// PacketIndex is the zero-based index of the packet being executed,
	// in phase order.
	PacketIndex int `json:"packet_index"`

	// PacketCount is the total number of packets in the project.
	PacketCount int `json:"packet_count"`

	// PacketTitle is the title of the packet being executed.
	PacketTitle string `json:"packet_title"`

	// Phase is the generation phase of the current packet.
	Phase string `json:"phase"`

	// Iteration is the current convergence iteration (1-indexed).
	Iteration int `json:"iteration"`

	// MaxIterations is the iteration budget for the current packet.
	MaxIterations int `json:"max_iterations"`

	// Confidence is the fraction of acceptance criteria met by the most
	// recent critique, in [0, 1].
	Confidence float64 `json:"confidence"`

	// FilesGenerated is the cumulative count of distinct files generated
	// so far across the project.
	FilesGenerated int `json:"files_generated"`

	// StartedAt is when project execution began.
	StartedAt time.Time `json:"started_at"`

	// UpdatedAt is when this snapshot was taken.
	UpdatedAt time.Time `json:"updated_at"`
}

// ExecutionResult is the immutable terminal record for one project run.
type ExecutionResult struct {
	// ProjectID identifies the project this result belongs to.
	ProjectID string `json:"project_id"`

	// ProjectName is the project name at execution time.
	ProjectName string `json:"project_name"`

	// Success is true when every packet converged and the apply step
	// (if any) succeeded.
	Success bool `json:"success"`

	// Files are the accumulated file changes, merged last-write-wins.
	Files []FileChange `json:"files"`

	// PacketsCompleted counts packets that met their acceptance bar.
	PacketsCompleted int `json:"packets_completed"`

	// PacketsFailed counts packets that exhausted their iteration budget
	// or errored.
	PacketsFailed int `json:"packets_failed"`

	// TotalIterations is the sum of iterations across all packets.
	TotalIterations int `json:"total_iterations"`

	// Duration is the wall-clock time the project took.
	Duration time.Duration `json:"duration"`

	// Errors collects human-readable messages from every failure path.
	Errors []string `json:"errors,omitempty"`

	// ChangeRequestURL references the merge/pull request opened by the
	// code applier, when one was created.
	ChangeRequestURL string `json:"change_request_url,omitempty"`
}
