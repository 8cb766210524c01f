// Package agent implements the Wiggum agent controller: the
// cross-project priority queue, the run/pause/resume/reset lifecycle,
// durable persistence of queue/state/last-result, and status
// notifications for subscribers.
//
// A Controller is an explicit instance with injected dependencies;
// there is no package-level singleton, and multiple independent
// controllers can coexist (each with its own store). All public
// methods are safe for concurrent use; a single internal mutex
// serializes mutations, and at most one execution loop runs per
// controller.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/wiggum/internal/errors"
	"github.com/Iron-Ham/wiggum/internal/executor"
	"github.com/Iron-Ham/wiggum/internal/logging"
	"github.com/Iron-Ham/wiggum/internal/packet"
	"github.com/Iron-Ham/wiggum/internal/store"
)

// ProjectRunner executes one project to completion. Satisfied by
// *executor.ProjectExecutor; tests substitute fakes.
type ProjectRunner interface {
	Execute(ctx context.Context, project *packet.Project, onProgress executor.ProjectProgressFunc) (*packet.ExecutionResult, error)
}

// Controller owns the project queue and the execution lifecycle. It is
// the only component with mutable cross-project state.
type Controller struct {
	runner ProjectRunner
	store  store.Store
	logger *logging.Logger

	mu            sync.Mutex
	state         State
	queue         projectQueue
	activeProject *packet.Project
	progress      *packet.ExecutionProgress
	lastResult    *packet.ExecutionResult
	errors        []string

	cancel context.CancelFunc
	done   chan struct{}

	subs      []subscription
	nextSubID int

	// now is replaced in tests.
	now func() time.Time
}

// New creates a Controller with the given dependencies. Persisted state
// is reloaded from the store: the queue and last result are restored,
// and a previously running controller comes back paused; it never
// resumes automatically. A nil store disables persistence; a nil logger
// disables logging.
func New(runner ProjectRunner, st store.Store, logger *logging.Logger) (*Controller, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	c := &Controller{
		runner: runner,
		store:  st,
		logger: logger,
		state:  StateIdle,
		now:    time.Now,
	}

	if st != nil {
		persisted, err := st.Load()
		if err != nil {
			// In-memory state is authoritative when the store is
			// unreadable; start fresh rather than refuse to start.
			logger.Warn("failed to load persisted state", "error", err.Error())
		}
		if persisted != nil {
			c.queue.replace(persisted.Queue)
			c.lastResult = persisted.LastResult

			s := State(persisted.ControllerState)
			if s == StateRunning {
				s = StatePaused
			}
			if s == "" {
				s = StateIdle
			}
			c.state = s
			logger.Info("restored persisted state",
				"state", c.state.String(),
				"queued", c.queue.len())
		}
	}

	return c, nil
}

// Enqueue adds a project to the queue with the given priority (lower is
// served first; packet.DefaultPriority when the caller has no
// preference). Enqueueing an already-queued project id keeps the lower
// of the two priorities. Missing project or packet ids are minted, and
// packets without a status start queued.
func (c *Controller) Enqueue(project packet.Project, priority int) {
	if project.ID == "" {
		project.ID = packet.NewID()
	}
	for i := range project.Packets {
		if project.Packets[i].ID == "" {
			project.Packets[i].ID = packet.NewID()
		}
		if project.Packets[i].Status == "" {
			project.Packets[i].Status = packet.StatusQueued
		}
	}

	c.mu.Lock()
	c.queue.enqueue(project, priority, c.now())
	c.logger.Info("project enqueued",
		"project_id", project.ID,
		"priority", priority,
		"queued", c.queue.len())
	c.persistLocked()
	c.notifyAndUnlock()
}

// Dequeue removes a queued project. Removing the currently active
// project is rejected; removing an absent id is a no-op.
func (c *Controller) Dequeue(projectID string) error {
	c.mu.Lock()
	if c.activeProject != nil && c.activeProject.ID == projectID {
		c.mu.Unlock()
		return errors.NewQueueError("dequeue", projectID, errors.ErrProjectActive)
	}
	removed := c.queue.remove(projectID)
	if removed {
		c.persistLocked()
	}
	c.notifyAndUnlock()
	return nil
}

// Reorder applies a caller-supplied total order for the given project
// ids. Ids not mentioned are appended after the mentioned ones in their
// prior relative order; priorities are reassigned to match.
func (c *Controller) Reorder(orderedIDs []string) {
	c.mu.Lock()
	c.queue.reorder(orderedIDs)
	c.persistLocked()
	c.notifyAndUnlock()
}

// Start begins serving the queue. Calling Start while already running
// is a logged no-op. Starting with an empty queue records an error and
// leaves the state unchanged.
func (c *Controller) Start() error {
	c.mu.Lock()

	if c.state == StateRunning {
		c.logger.Info("start requested while already running")
		c.mu.Unlock()
		return nil
	}

	prev := c.done
	c.mu.Unlock()
	return c.launch("start", prev)
}

// launch waits for a previous execution loop to fully drain, then
// re-checks preconditions under the lock and spawns a new loop.
// Cancellation is cooperative, so after a Stop the old loop may still
// be finishing its in-flight backend call; spawning before it exits
// would put two executions on the same queue head.
func (c *Controller) launch(op string, prev chan struct{}) error {
	if prev != nil {
		<-prev
	}

	c.mu.Lock()

	if c.state == StateRunning {
		c.mu.Unlock()
		return nil
	}

	if c.queue.len() == 0 {
		err := errors.NewQueueError(op, "", errors.ErrQueueEmpty)
		c.errors = append(c.errors, err.Error())
		c.logger.Warn(op + " requested with empty queue")
		c.notifyAndUnlock()
		return err
	}

	c.startLocked()
	c.notifyAndUnlock()
	return nil
}

// startLocked transitions to running and launches the execution loop.
// The caller must hold the mutex.
func (c *Controller) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateRunning
	c.errors = nil
	c.persistLocked()
	c.logger.Info("agent started", "queued", c.queue.len())

	go c.runLoop(ctx, c.done)
}

// Stop pauses execution. Valid only while running. Cancellation is
// cooperative: the in-flight backend call finishes and the loop stops
// at the next iteration boundary. The queue is untouched; the active
// project stays at the head for the next Resume.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return errors.ErrNotRunning
	}

	c.state = StatePaused
	cancel := c.cancel
	c.persistLocked()
	c.logger.Info("agent stopping")
	c.notifyAndUnlock()

	cancel()
	return nil
}

// Resume continues execution after a Stop. Valid only while paused.
// Resume blocks until the interrupted run has drained, then restarts
// the head packet from iteration zero; partial convergence progress is
// deliberately not preserved.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return errors.ErrNotPaused
	}

	prev := c.done
	c.mu.Unlock()
	return c.launch("resume", prev)
}

// Reset stops any running execution, clears the queue, active project,
// progress, result, and errors, and returns to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	running := c.state == StateRunning
	if running {
		c.state = StatePaused
	}
	c.mu.Unlock()

	if running && cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.queue.replace(nil)
	c.activeProject = nil
	c.progress = nil
	c.lastResult = nil
	c.errors = nil
	c.state = StateIdle
	c.persistLocked()
	c.logger.Info("agent reset")
	c.notifyAndUnlock()
}

// Wait blocks until the execution loop exits. Returns immediately if no
// loop has been started.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Subscribe registers a listener invoked synchronously on every state
// mutation, in registration order. The returned function unsubscribes.
func (c *Controller) Subscribe(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subs = append(c.subs, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i := range c.subs {
			if c.subs[i].id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Status returns a snapshot of the controller's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// runLoop serves the queue head-first until the queue drains, a stop is
// requested, or the controller is reset. It runs in its own goroutine;
// exactly one loop exists per running controller.
func (c *Controller) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		c.mu.Lock()
		if c.state != StateRunning {
			c.mu.Unlock()
			return
		}

		head := c.queue.head()
		if head == nil {
			c.state = StateCompleted
			c.activeProject = nil
			c.progress = nil
			c.persistLocked()
			c.logger.Info("queue drained, agent completed")
			c.notifyAndUnlock()
			return
		}

		// Run a copy so queue mutations during execution never alias
		// the project the executor is mutating.
		project := head.Project
		project.Packets = append([]packet.WorkPacket(nil), head.Project.Packets...)
		c.activeProject = &project
		c.progress = nil
		c.logger.Info("project activated", "project_id", project.ID)
		c.notifyAndUnlock()

		result, err := c.runner.Execute(ctx, &project, c.onProgress)

		c.mu.Lock()
		c.activeProject = nil
		c.progress = nil

		switch {
		case err == nil:
			// Done, whether or not every packet converged; the result
			// carries the detail.
			c.lastResult = result
			c.queue.remove(project.ID)
			c.persistLocked()
			c.logger.Info("project finished",
				"project_id", project.ID,
				"success", result.Success)
			c.notifyAndUnlock()

		case errors.IsStop(err):
			// Deliberate stop: the project stays at the head of the
			// queue for the next resume.
			c.persistLocked()
			c.logger.Info("execution stopped", "project_id", project.ID)
			c.notifyAndUnlock()
			return

		default:
			// Unexpected executor failure: record it, push the project
			// to the back of the line, and keep serving the queue.
			c.errors = append(c.errors, err.Error())
			c.queue.remove(project.ID)
			c.queue.enqueue(project, packet.RetryPriority, c.now())
			c.persistLocked()
			c.logger.Error("project failed unexpectedly, requeued for retry",
				"project_id", project.ID,
				"error", err.Error())
			c.notifyAndUnlock()
		}
	}
}

// onProgress receives per-iteration progress from the project executor.
// Progress is ephemeral: subscribers see it, the store never does.
func (c *Controller) onProgress(p packet.ExecutionProgress) {
	c.mu.Lock()
	c.progress = &p
	c.notifyAndUnlock()
}

// statusLocked builds a status snapshot. The caller must hold the mutex.
func (c *Controller) statusLocked() Status {
	var active *packet.Project
	if c.activeProject != nil {
		cp := *c.activeProject
		active = &cp
	}
	var progress *packet.ExecutionProgress
	if c.progress != nil {
		cp := *c.progress
		progress = &cp
	}

	return Status{
		State:         c.state,
		ActiveProject: active,
		Progress:      progress,
		Queue:         c.queue.snapshot(),
		LastResult:    c.lastResult,
		Errors:        append([]string(nil), c.errors...),
	}
}

// persistLocked writes the durable subset of state (queue, lifecycle
// state, last result) to the store. Persistence failures are logged and
// otherwise ignored; in-memory state stays authoritative until the next
// successful write. The caller must hold the mutex.
func (c *Controller) persistLocked() {
	if c.store == nil {
		return
	}

	err := c.store.Save(&store.State{
		Queue:           c.queue.snapshot(),
		ControllerState: c.state.String(),
		LastResult:      c.lastResult,
	})
	if err != nil {
		c.logger.Warn("failed to persist state", "error", err.Error())
	}
}

// notifyAndUnlock snapshots status and listeners, releases the mutex,
// and delivers the snapshot synchronously. Delivering outside the lock
// lets listeners call back into the controller.
func (c *Controller) notifyAndUnlock() {
	status := c.statusLocked()
	subs := append([]subscription(nil), c.subs...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(status)
	}
}
