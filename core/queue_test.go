package core

import (
	"context"
	"testing"
)

// TestTaskQueue_FIFO verifies first-in-first-out behavior
// Given: A queue with 3 tasks
// When: Tasks are popped from the queue
// Then: Tasks come out in insertion order
func TestTaskQueue_FIFO(t *testing.T) {
	// Arrange
	q := newTaskQueue()
	var order []int
	for i := 0; i < 3; i++ {
		if _, ok := q.push(func(ctx context.Context) { order = append(order, i) }); !ok {
			t.Fatalf("push %d refused on open queue", i)
		}
	}

	// Act
	for {
		task, ok := q.pop()
		if !ok {
			break
		}
		task(context.Background())
	}

	// Assert
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("execution order = %v, want [0 1 2]", order)
	}
}

// TestTaskQueue_PushReportsDepth verifies push returns the new length
func TestTaskQueue_PushReportsDepth(t *testing.T) {
	q := newTaskQueue()
	noop := func(ctx context.Context) {}
	for want := 1; want <= 5; want++ {
		if got, _ := q.push(noop); got != want {
			t.Errorf("push depth = %d, want %d", got, want)
		}
	}
}

// TestTaskQueue_Shrinks verifies the backing array is released after draining
// Given: A queue that held 100 tasks
// When: Every task is popped
// Then: Capacity drops below the shrink floor and the queue still works
func TestTaskQueue_Shrinks(t *testing.T) {
	// Arrange
	q := newTaskQueue()
	noop := func(ctx context.Context) {}
	for i := 0; i < 100; i++ {
		q.push(noop)
	}

	// Act
	for i := 0; i < 100; i++ {
		q.pop()
	}

	// Assert
	q.mu.Lock()
	c := cap(q.tasks)
	q.mu.Unlock()
	if c >= queueShrinkAt {
		t.Errorf("cap after draining = %d, want < %d", c, queueShrinkAt)
	}

	q.push(noop)
	if q.len() != 1 {
		t.Errorf("len() = %d after push, want 1", q.len())
	}
}

// TestTaskQueue_CloseAndClear verifies close refuses pushes and clear drops
// Given: A queue holding 4 tasks
// When: It is closed, pushed to, and cleared twice
// Then: The push is refused, the first clear drops 4 and the second none
func TestTaskQueue_CloseAndClear(t *testing.T) {
	q := newTaskQueue()
	noop := func(ctx context.Context) {}
	for i := 0; i < 4; i++ {
		q.push(noop)
	}

	q.close()
	if _, ok := q.push(noop); ok {
		t.Error("push accepted after close")
	}
	if !q.isClosed() {
		t.Error("isClosed() = false after close")
	}
	if got := q.clear(); got != 4 {
		t.Errorf("clear() = %d, want 4", got)
	}
	if got := q.clear(); got != 0 {
		t.Errorf("second clear() = %d, want 0", got)
	}
}
