package events

import (
	"testing"

	"github.com/Iron-Ham/wiggum/internal/agent"
	"github.com/Iron-Ham/wiggum/internal/packet"
)

func TestTrackerFirstSnapshotIsBaseline(t *testing.T) {
	tr := NewTracker()

	out := tr.Observe(agent.Status{State: agent.StateIdle})
	if len(out) != 0 {
		t.Errorf("first snapshot should produce no events, got %v", out)
	}
}

func TestTrackerStateChange(t *testing.T) {
	tr := NewTracker()
	tr.Observe(agent.Status{State: agent.StateIdle})

	out := tr.Observe(agent.Status{State: agent.StateRunning})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	ev, ok := out[0].(AgentStateChangedEvent)
	if !ok {
		t.Fatalf("event type = %T", out[0])
	}
	if ev.From != "idle" || ev.To != "running" {
		t.Errorf("transition = %s -> %s, want idle -> running", ev.From, ev.To)
	}
}

func TestTrackerProjectStartAndIteration(t *testing.T) {
	tr := NewTracker()
	tr.Observe(agent.Status{State: agent.StateRunning})

	active := &packet.Project{
		ID:      "p1",
		Name:    "Demo",
		Packets: []packet.WorkPacket{{Title: "a"}, {Title: "b"}},
	}
	out := tr.Observe(agent.Status{State: agent.StateRunning, ActiveProject: active})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	started, ok := out[0].(ProjectStartedEvent)
	if !ok || started.ProjectID != "p1" || started.Packets != 2 {
		t.Fatalf("event = %+v", out[0])
	}

	// Same active project again: no duplicate start event.
	out = tr.Observe(agent.Status{State: agent.StateRunning, ActiveProject: active})
	if len(out) != 0 {
		t.Errorf("repeated snapshot should produce no events, got %v", out)
	}

	// New iteration produces a packet event.
	progress := &packet.ExecutionProgress{
		ProjectID:   "p1",
		PacketTitle: "a",
		Phase:       "scaffold",
		Iteration:   1, MaxIterations: 15,
		Confidence:     0.5,
		FilesGenerated: 2,
	}
	out = tr.Observe(agent.Status{State: agent.StateRunning, ActiveProject: active, Progress: progress})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	iter, ok := out[0].(PacketIterationEvent)
	if !ok || iter.Iteration != 1 || iter.Confidence != 0.5 {
		t.Fatalf("event = %+v", out[0])
	}

	// Unchanged iteration: suppressed.
	out = tr.Observe(agent.Status{State: agent.StateRunning, ActiveProject: active, Progress: progress})
	if len(out) != 0 {
		t.Errorf("unchanged progress should produce no events, got %v", out)
	}

	next := *progress
	next.Iteration = 2
	out = tr.Observe(agent.Status{State: agent.StateRunning, ActiveProject: active, Progress: &next})
	if len(out) != 1 {
		t.Errorf("advanced iteration should produce one event, got %v", out)
	}
}

func TestTrackerProjectFinished(t *testing.T) {
	tr := NewTracker()
	tr.Observe(agent.Status{State: agent.StateRunning})

	result := &packet.ExecutionResult{
		ProjectID:        "p1",
		ProjectName:      "Demo",
		Success:          true,
		PacketsCompleted: 2,
		Files:            []packet.FileChange{{Path: "a.go"}},
		ChangeRequestURL: "https://example.com/pr/1",
	}
	out := tr.Observe(agent.Status{State: agent.StateRunning, LastResult: result})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	fin, ok := out[0].(ProjectFinishedEvent)
	if !ok {
		t.Fatalf("event type = %T", out[0])
	}
	if !fin.Success || fin.Files != 1 || fin.ChangeRequestURL != "https://example.com/pr/1" {
		t.Errorf("event = %+v", fin)
	}

	// Same result pointer: no duplicate.
	out = tr.Observe(agent.Status{State: agent.StateRunning, LastResult: result})
	if len(out) != 0 {
		t.Errorf("same result should not re-fire, got %v", out)
	}

	// A fresh result for the same project fires again.
	again := *result
	out = tr.Observe(agent.Status{State: agent.StateRunning, LastResult: &again})
	if len(out) != 1 {
		t.Errorf("new result should fire, got %v", out)
	}
}

func TestTrackerQueueAndErrors(t *testing.T) {
	tr := NewTracker()
	tr.Observe(agent.Status{State: agent.StateIdle})

	out := tr.Observe(agent.Status{
		State: agent.StateIdle,
		Queue: []packet.QueuedProject{{Project: packet.Project{ID: "p1"}}},
	})
	if len(out) != 1 {
		t.Fatalf("got %d events, want 1", len(out))
	}
	qc, ok := out[0].(QueueChangedEvent)
	if !ok || qc.Depth != 1 {
		t.Errorf("event = %+v", out[0])
	}

	out = tr.Observe(agent.Status{
		State:  agent.StateIdle,
		Queue:  []packet.QueuedProject{{Project: packet.Project{ID: "p1"}}},
		Errors: []string{"first failure", "second failure"},
	})
	if len(out) != 2 {
		t.Fatalf("got %d events, want 2", len(out))
	}
	for i, want := range []string{"first failure", "second failure"} {
		ev, ok := out[i].(ErrorEvent)
		if !ok || ev.Message != want {
			t.Errorf("event[%d] = %+v, want message %q", i, out[i], want)
		}
	}
}
