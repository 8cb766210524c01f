package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	wiggumerrors "github.com/Iron-Ham/wiggum/internal/errors"
	"github.com/Iron-Ham/wiggum/internal/executor"
	"github.com/Iron-Ham/wiggum/internal/packet"
	"github.com/Iron-Ham/wiggum/internal/store"
)

// fakeRunner is a ProjectRunner with scriptable behavior per project.
type fakeRunner struct {
	mu       sync.Mutex
	order    []string
	calls    map[string]int
	failOnce map[string]error

	// When blocking, Execute waits for release (or cancellation).
	// A non-nil drain additionally holds a cancelled Execute open
	// until the channel is closed.
	blocking bool
	started  chan string
	release  chan struct{}
	drain    chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		calls:    make(map[string]int),
		failOnce: make(map[string]error),
		release:  make(chan struct{}),
	}
}

func (r *fakeRunner) Execute(ctx context.Context, project *packet.Project, onProgress executor.ProjectProgressFunc) (*packet.ExecutionResult, error) {
	r.mu.Lock()
	r.order = append(r.order, project.ID)
	r.calls[project.ID]++
	failErr := r.failOnce[project.ID]
	if failErr != nil {
		delete(r.failOnce, project.ID)
	}
	r.mu.Unlock()

	if r.started != nil {
		r.started <- project.ID
	}

	if r.blocking {
		select {
		case <-ctx.Done():
			if r.drain != nil {
				<-r.drain
			}
			return &packet.ExecutionResult{ProjectID: project.ID}, wiggumerrors.ErrInterrupted
		case <-r.release:
		}
	}

	if failErr != nil {
		return nil, failErr
	}

	if onProgress != nil {
		onProgress(packet.ExecutionProgress{
			ProjectID: project.ID,
			Iteration: 1,
		})
	}

	return &packet.ExecutionResult{
		ProjectID:        project.ID,
		ProjectName:      project.Name,
		Success:          true,
		PacketsCompleted: len(project.Packets),
	}, nil
}

func (r *fakeRunner) executionOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// memStore is an in-memory Store recording every save.
type memStore struct {
	mu      sync.Mutex
	saves   []store.State
	failing bool
}

func (s *memStore) Save(st *store.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.saves = append(s.saves, *st)
	return nil
}

func (s *memStore) Load() (*store.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil, nil
	}
	last := s.saves[len(s.saves)-1]
	return &last, nil
}

func (s *memStore) lastSave() *store.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return nil
	}
	last := s.saves[len(s.saves)-1]
	return &last
}

func project(id string) packet.Project {
	return packet.Project{
		ID:   id,
		Name: "Project " + id,
		Packets: []packet.WorkPacket{
			{ID: id + "-pkt", Title: "Feature", Status: packet.StatusQueued},
		},
	}
}

func newController(t *testing.T, runner ProjectRunner, st store.Store) *Controller {
	t.Helper()
	c, err := New(runner, st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestPriorityOrderExecution(t *testing.T) {
	// Priorities 5 and 1: the priority-1 project runs first regardless
	// of enqueue order.
	runner := newFakeRunner()
	c := newController(t, runner, nil)

	c.Enqueue(project("p5"), 5)
	c.Enqueue(project("p1"), 1)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()

	want := []string{"p1", "p5"}
	got := runner.executionOrder()
	if len(got) != len(want) {
		t.Fatalf("executed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("execution order[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	status := c.Status()
	if status.State != StateCompleted {
		t.Errorf("state = %s, want completed", status.State)
	}
	if len(status.Queue) != 0 {
		t.Errorf("queue should be drained, has %d entries", len(status.Queue))
	}
	if status.LastResult == nil || status.LastResult.ProjectID != "p5" {
		t.Errorf("last result = %+v, want p5", status.LastResult)
	}
}

func TestStartEmptyQueue(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)

	err := c.Start()
	if !wiggumerrors.Is(err, wiggumerrors.ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}

	status := c.Status()
	if status.State != StateIdle {
		t.Errorf("state = %s, want idle (no state change on failed start)", status.State)
	}
	if len(status.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %v", status.Errors)
	}
}

func TestStartWhileRunningIsNoOp(t *testing.T) {
	runner := newFakeRunner()
	runner.blocking = true
	runner.started = make(chan string, 1)
	c := newController(t, runner, nil)

	c.Enqueue(project("p1"), 1)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-runner.started

	if err := c.Start(); err != nil {
		t.Errorf("second Start should be a no-op, got %v", err)
	}

	close(runner.release)
	c.Wait()

	if calls := runner.calls["p1"]; calls != 1 {
		t.Errorf("project executed %d times, want 1", calls)
	}
}

func TestStopAndResume(t *testing.T) {
	runner := newFakeRunner()
	runner.blocking = true
	runner.started = make(chan string, 2)
	c := newController(t, runner, nil)

	c.Enqueue(project("p1"), 1)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-runner.started

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	c.Wait()

	status := c.Status()
	if status.State != StatePaused {
		t.Errorf("state = %s, want paused", status.State)
	}
	// The interrupted project stays at the head of the queue.
	if len(status.Queue) != 1 || status.Queue[0].Project.ID != "p1" {
		t.Fatalf("queue after stop = %+v, want p1 at head", status.Queue)
	}
	if status.ActiveProject != nil {
		t.Error("no project should be active while paused")
	}

	// Resume reprocesses the same project from scratch.
	runner.blocking = false
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	<-runner.started
	c.Wait()

	if calls := runner.calls["p1"]; calls != 2 {
		t.Errorf("project executed %d times, want 2 (restarted from zero)", calls)
	}
	if got := c.Status().State; got != StateCompleted {
		t.Errorf("state = %s, want completed", got)
	}
}

func TestResumeWaitsForStoppedRunToDrain(t *testing.T) {
	// Stop is cooperative: the runner keeps executing until its
	// in-flight call returns. An immediate Resume must wait for that
	// run to drain instead of launching a second one alongside it.
	runner := newFakeRunner()
	runner.blocking = true
	runner.started = make(chan string, 2)
	runner.drain = make(chan struct{})
	c := newController(t, runner, nil)

	c.Enqueue(project("p1"), 1)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-runner.started

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The cancelled run is now parked on the drain channel. Resume
	// from another goroutine and verify no second execution begins
	// while the first is still in flight.
	resumed := make(chan error, 1)
	go func() { resumed <- c.Resume() }()

	select {
	case id := <-runner.started:
		t.Fatalf("execution of %s started while the stopped run was still in flight", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.drain)
	if err := <-resumed; err != nil {
		t.Fatalf("Resume: %v", err)
	}

	<-runner.started
	close(runner.release)
	c.Wait()

	if calls := runner.calls["p1"]; calls != 2 {
		t.Errorf("project executed %d times, want 2", calls)
	}
	if got := c.Status().State; got != StateCompleted {
		t.Errorf("state = %s, want completed", got)
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)
	if err := c.Stop(); !wiggumerrors.Is(err, wiggumerrors.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning, got %v", err)
	}
}

func TestResumeWhenNotPaused(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)
	if err := c.Resume(); !wiggumerrors.Is(err, wiggumerrors.ErrNotPaused) {
		t.Errorf("expected ErrNotPaused, got %v", err)
	}
}

func TestResetMidRun(t *testing.T) {
	runner := newFakeRunner()
	runner.blocking = true
	runner.started = make(chan string, 1)
	c := newController(t, runner, nil)

	c.Enqueue(project("p1"), 1)
	c.Enqueue(project("p2"), 2)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-runner.started

	c.Reset()

	status := c.Status()
	if status.State != StateIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
	if len(status.Queue) != 0 {
		t.Errorf("queue should be empty after reset, has %d entries", len(status.Queue))
	}
	if status.ActiveProject != nil {
		t.Error("active project should be cleared")
	}
	if status.Progress != nil {
		t.Error("progress should be cleared")
	}
	if status.LastResult != nil {
		t.Error("last result should be cleared")
	}
	if len(status.Errors) != 0 {
		t.Errorf("errors should be cleared, got %v", status.Errors)
	}
}

func TestUnexpectedFailureDeprioritizesAndRetries(t *testing.T) {
	runner := newFakeRunner()
	runner.failOnce["pA"] = errors.New("executor crashed")
	c := newController(t, runner, nil)

	c.Enqueue(project("pA"), 1)
	c.Enqueue(project("pB"), 2)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()

	// pA fails, goes to the back, pB runs, then pA retries and passes.
	want := []string{"pA", "pB", "pA"}
	got := runner.executionOrder()
	if len(got) != len(want) {
		t.Fatalf("executed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("execution order[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	status := c.Status()
	if status.State != StateCompleted {
		t.Errorf("state = %s, want completed", status.State)
	}
	found := false
	for _, msg := range status.Errors {
		if strings.Contains(msg, "executor crashed") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected crash message in controller errors, got %v", status.Errors)
	}
}

func TestEnqueueDuplicateKeepsLowerPriority(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)

	c.Enqueue(project("p1"), 10)
	c.Enqueue(project("p1"), 3)

	status := c.Status()
	if len(status.Queue) != 1 {
		t.Fatalf("queue len = %d, want 1", len(status.Queue))
	}
	if status.Queue[0].Priority != 3 {
		t.Errorf("priority = %d, want 3", status.Queue[0].Priority)
	}
}

func TestEnqueueMintsIDs(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)

	c.Enqueue(packet.Project{
		Name:    "Anonymous",
		Packets: []packet.WorkPacket{{Title: "Untitled"}},
	}, packet.DefaultPriority)

	status := c.Status()
	p := status.Queue[0].Project
	if p.ID == "" {
		t.Error("project id should be minted")
	}
	if p.Packets[0].ID == "" {
		t.Error("packet id should be minted")
	}
	if p.Packets[0].Status != packet.StatusQueued {
		t.Errorf("packet status = %s, want queued", p.Packets[0].Status)
	}
}

func TestDequeue(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)

	c.Enqueue(project("p1"), 1)
	c.Enqueue(project("p2"), 2)

	if err := c.Dequeue("p1"); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if err := c.Dequeue("absent"); err != nil {
		t.Errorf("dequeue of absent id should be a no-op, got %v", err)
	}

	status := c.Status()
	if len(status.Queue) != 1 || status.Queue[0].Project.ID != "p2" {
		t.Errorf("queue = %+v, want only p2", status.Queue)
	}
}

func TestDequeueActiveProjectRejected(t *testing.T) {
	runner := newFakeRunner()
	runner.blocking = true
	runner.started = make(chan string, 1)
	c := newController(t, runner, nil)

	c.Enqueue(project("p1"), 1)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-runner.started

	if err := c.Dequeue("p1"); !wiggumerrors.Is(err, wiggumerrors.ErrProjectActive) {
		t.Errorf("expected ErrProjectActive, got %v", err)
	}

	close(runner.release)
	c.Wait()
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)

	var mu sync.Mutex
	var seen []Status
	unsubscribe := c.Subscribe(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.Enqueue(project("p1"), 1)

	mu.Lock()
	n := len(seen)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected 1 notification after enqueue, got %d", n)
	}

	unsubscribe()
	c.Enqueue(project("p2"), 2)

	mu.Lock()
	n = len(seen)
	mu.Unlock()
	if n != 1 {
		t.Errorf("expected no notifications after unsubscribe, got %d", n)
	}
}

func TestProjectsRunSequentially(t *testing.T) {
	runner := newFakeRunner()
	c := newController(t, runner, nil)

	var mu sync.Mutex
	activeSeen := make(map[string]bool)
	c.Subscribe(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		if s.ActiveProject != nil {
			activeSeen[s.ActiveProject.ID] = true
		}
	})

	c.Enqueue(project("p1"), 1)
	c.Enqueue(project("p2"), 2)
	c.Enqueue(project("p3"), 3)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()

	if got := runner.executionOrder(); len(got) != 3 {
		t.Errorf("executed %d projects, want exactly 3", len(got))
	}
	mu.Lock()
	defer mu.Unlock()
	for _, id := range []string{"p1", "p2", "p3"} {
		if !activeSeen[id] {
			t.Errorf("project %s was never observed as active", id)
		}
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	st := &memStore{}

	c := newController(t, newFakeRunner(), st)
	c.Enqueue(project("p1"), 4)

	saved := st.lastSave()
	if saved == nil {
		t.Fatal("expected a save after enqueue")
	}
	if len(saved.Queue) != 1 || saved.Queue[0].Project.ID != "p1" {
		t.Errorf("persisted queue = %+v", saved.Queue)
	}

	// A second controller on the same store restores the queue.
	c2 := newController(t, newFakeRunner(), st)
	status := c2.Status()
	if len(status.Queue) != 1 || status.Queue[0].Project.ID != "p1" {
		t.Errorf("restored queue = %+v", status.Queue)
	}
	if status.Queue[0].Priority != 4 {
		t.Errorf("restored priority = %d, want 4", status.Queue[0].Priority)
	}
}

func TestPersistedRunningMapsToPaused(t *testing.T) {
	st := &memStore{}
	_ = st.Save(&store.State{
		Queue: []packet.QueuedProject{
			{Project: project("p1"), Priority: 1, AddedAt: time.Now()},
		},
		ControllerState: StateRunning.String(),
	})

	c := newController(t, newFakeRunner(), st)
	if got := c.Status().State; got != StatePaused {
		t.Errorf("state = %s, want paused (never auto-resume)", got)
	}
}

func TestPersistenceFailureIsNonFatal(t *testing.T) {
	st := &memStore{failing: true}
	c := newController(t, newFakeRunner(), st)

	c.Enqueue(project("p1"), 1)

	status := c.Status()
	if len(status.Queue) != 1 {
		t.Error("in-memory state must stay authoritative when persistence fails")
	}
}

func TestProgressIsEphemeral(t *testing.T) {
	st := &memStore{}
	runner := newFakeRunner()
	c := newController(t, runner, st)

	var sawProgress bool
	c.Subscribe(func(s Status) {
		if s.Progress != nil {
			sawProgress = true
		}
	})

	c.Enqueue(project("p1"), 1)
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()

	if !sawProgress {
		t.Error("subscribers should observe progress snapshots")
	}
	// The persisted snapshot has no progress field at all; verify the
	// final save carries queue/state/result only.
	saved := st.lastSave()
	if saved == nil {
		t.Fatal("expected saves")
	}
	if saved.ControllerState != StateCompleted.String() {
		t.Errorf("persisted state = %s, want completed", saved.ControllerState)
	}
	if saved.LastResult == nil || !saved.LastResult.Success {
		t.Errorf("persisted last result = %+v", saved.LastResult)
	}
}

func TestReorderQueue(t *testing.T) {
	c := newController(t, newFakeRunner(), nil)

	c.Enqueue(project("a"), 1)
	c.Enqueue(project("b"), 2)
	c.Enqueue(project("c"), 3)

	c.Reorder([]string{"c", "b"})

	status := c.Status()
	want := []string{"c", "b", "a"}
	for i, w := range want {
		if status.Queue[i].Project.ID != w {
			t.Errorf("queue[%d] = %s, want %s", i, status.Queue[i].Project.ID, w)
		}
	}
}
