package core

import "sync"

const (
	queueBaseCap  = 16
	queueShrinkAt = 64 // backing arrays below this capacity are never reallocated
)

// taskQueue is the FIFO behind TaskScheduler. Closing and pushing share one
// lock, so a task is either refused or visible to the Clear that follows
// close.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
}

func newTaskQueue() *taskQueue {
	return &taskQueue{tasks: make([]Task, 0, queueBaseCap)}
}

// push appends t and returns the new length, or false once the queue is closed.
func (q *taskQueue) push(t Task) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, false
	}
	q.tasks = append(q.tasks, t)
	return len(q.tasks), true
}

func (q *taskQueue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.shrinkLocked()
	return t, true
}

// shrinkLocked copies the live tail into a smaller array once popping has
// left three quarters of the backing array dead.
func (q *taskQueue) shrinkLocked() {
	n, c := len(q.tasks), cap(q.tasks)
	switch {
	case c < queueShrinkAt:
	case n == 0:
		q.tasks = make([]Task, 0, queueBaseCap)
	case n*4 < c:
		live := make([]Task, n, max(c/2, queueBaseCap, n))
		copy(live, q.tasks)
		q.tasks = live
	}
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// close refuses further pushes. Queued tasks stay until clear.
func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *taskQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// clear drops every queued task and returns how many there were.
func (q *taskQueue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := len(q.tasks)
	q.tasks = make([]Task, 0, queueBaseCap)
	return dropped
}
