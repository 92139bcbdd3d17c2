package core

import (
	"sync"
)

const DefaultTaskHistoryCapacity = 100

// TaskHistory is a fixed-size ring of the most recent task executions.
type TaskHistory struct {
	mu    sync.Mutex
	items []TaskExecutionRecord
	head  int
	count int
	total int64
}

func NewTaskHistory(capacity int) *TaskHistory {
	if capacity < 1 {
		capacity = DefaultTaskHistoryCapacity
	}
	return &TaskHistory{items: make([]TaskExecutionRecord, capacity)}
}

func (h *TaskHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
	h.total++
}

// Recent returns up to limit records, newest first. limit <= 0 returns all retained records.
func (h *TaskHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TaskExecutionRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *TaskHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskExecutionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

// Total is the number of records ever added, including evicted ones.
func (h *TaskHistory) Total() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
