package agent

import (
	"sort"
	"time"

	"github.com/Iron-Ham/wiggum/internal/packet"
)

// projectQueue holds the projects waiting for execution, kept sorted
// ascending by priority after every mutation. Equal priorities preserve
// insertion order (FIFO). The queue is not safe for concurrent use; the
// controller serializes access through its own mutex.
type projectQueue struct {
	items []packet.QueuedProject
}

// enqueue inserts a project with the given priority. Enqueueing a
// project id that is already queued is idempotent: the entry keeps the
// lower (higher-priority) of the two values and the queue is re-sorted.
func (q *projectQueue) enqueue(project packet.Project, priority int, now time.Time) {
	for i := range q.items {
		if q.items[i].Project.ID == project.ID {
			if priority < q.items[i].Priority {
				q.items[i].Priority = priority
			}
			q.sort()
			return
		}
	}

	q.items = append(q.items, packet.QueuedProject{
		Project:  project,
		Priority: priority,
		AddedAt:  now,
	})
	q.sort()
}

// remove deletes the project with the given id. Returns false if the id
// is not queued.
func (q *projectQueue) remove(projectID string) bool {
	for i := range q.items {
		if q.items[i].Project.ID == projectID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// reorder applies a caller-supplied total order for the given ids.
// Ids not mentioned keep their prior relative order after the mentioned
// ones. Priorities are reassigned to match the new positions so the
// ascending-priority invariant continues to hold.
func (q *projectQueue) reorder(orderedIDs []string) {
	index := make(map[string]int, len(q.items))
	for i := range q.items {
		index[q.items[i].Project.ID] = i
	}

	var next []packet.QueuedProject
	taken := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if i, ok := index[id]; ok && !taken[id] {
			next = append(next, q.items[i])
			taken[id] = true
		}
	}
	for i := range q.items {
		if !taken[q.items[i].Project.ID] {
			next = append(next, q.items[i])
		}
	}

	for i := range next {
		next[i].Priority = i
	}
	q.items = next
}

// head returns a pointer to the highest-priority queued project, or nil
// when the queue is empty.
func (q *projectQueue) head() *packet.QueuedProject {
	if len(q.items) == 0 {
		return nil
	}
	return &q.items[0]
}

// len returns the number of queued projects.
func (q *projectQueue) len() int {
	return len(q.items)
}

// snapshot returns a copy of the queue contents in order.
func (q *projectQueue) snapshot() []packet.QueuedProject {
	out := make([]packet.QueuedProject, len(q.items))
	copy(out, q.items)
	return out
}

// replace swaps in persisted queue contents, restoring the sort
// invariant in case the snapshot predates it.
func (q *projectQueue) replace(items []packet.QueuedProject) {
	q.items = append([]packet.QueuedProject(nil), items...)
	q.sort()
}

// sort re-establishes ascending priority order. The sort is stable so
// equal priorities keep their relative (insertion) order.
func (q *projectQueue) sort() {
	sort.SliceStable(q.items, func(a, b int) bool {
		return q.items[a].Priority < q.items[b].Priority
	})
}
