package events

import (
	"github.com/Iron-Ham/wiggum/internal/agent"
	"github.com/Iron-Ham/wiggum/internal/packet"
)

// Tracker turns consecutive controller status snapshots into discrete
// events by diffing each snapshot against the previous one. It is not
// safe for concurrent use; feed it from a single subscriber.
type Tracker struct {
	primed     bool
	last       agent.Status
	lastResult *packet.ExecutionResult
}

// NewTracker creates a Tracker. The first observed snapshot establishes
// the baseline; only subsequent changes produce events.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe diffs the snapshot against the previous one and returns the
// events the transition implies, in a stable order: state change, queue
// change, project start, iteration progress, project finish, errors.
func (t *Tracker) Observe(s agent.Status) []Event {
	if !t.primed {
		t.primed = true
		t.last = s
		t.lastResult = s.LastResult
		return nil
	}

	var out []Event

	if s.State != t.last.State {
		out = append(out, NewAgentStateChangedEvent(t.last.State.String(), s.State.String()))
	}

	if len(s.Queue) != len(t.last.Queue) {
		out = append(out, NewQueueChangedEvent(len(s.Queue)))
	}

	if s.ActiveProject != nil && (t.last.ActiveProject == nil || t.last.ActiveProject.ID != s.ActiveProject.ID) {
		out = append(out, NewProjectStartedEvent(
			s.ActiveProject.ID,
			s.ActiveProject.Name,
			len(s.ActiveProject.Packets)))
	}

	if s.Progress != nil && progressChanged(t.last.Progress, s.Progress) {
		p := s.Progress
		out = append(out, NewPacketIterationEvent(
			p.ProjectID, p.PacketTitle, p.Phase,
			p.Iteration, p.MaxIterations,
			p.Confidence, p.FilesGenerated))
	}

	// The controller installs a fresh result value per completed run, so
	// pointer identity distinguishes runs even of the same project.
	if s.LastResult != nil && s.LastResult != t.lastResult {
		r := s.LastResult
		out = append(out, NewProjectFinishedEvent(
			r.ProjectID, r.ProjectName, r.Success,
			r.PacketsCompleted, r.PacketsFailed,
			len(r.Files), r.ChangeRequestURL))
		t.lastResult = s.LastResult
	}

	for i := len(t.last.Errors); i < len(s.Errors); i++ {
		out = append(out, NewErrorEvent(s.Errors[i]))
	}

	t.last = s
	return out
}

// progressChanged reports whether the new progress snapshot represents
// a different iteration or packet than the previous one.
func progressChanged(prev, cur *packet.ExecutionProgress) bool {
	if prev == nil {
		return true
	}
	return prev.ProjectID != cur.ProjectID ||
		prev.PacketIndex != cur.PacketIndex ||
		prev.Iteration != cur.Iteration
}
