package queue

import (
	"sort"
	"sync"
)

// Classification carries optional classifier metadata attached at intake.
// It never influences queue ordering.
type Classification struct {
	Label      string
	Confidence float64
}

// Item represents one unit of work. Items are created at intake, consumed
// exactly once by Dequeue, and never mutated afterwards; subsequent state
// lives in the status tracker.
type Item struct {
	ID             string
	InputPath      string
	OutputPath     string
	Overrides      map[string]any
	Priority       int
	Classification *Classification
}

type entry struct {
	item *Item
	seq  uint64
}

// Queue is a priority queue of pending items. Higher priority dequeues
// first; equal priorities dequeue in insertion order.
type Queue struct {
	mu      sync.RWMutex
	entries []entry
	nextSeq uint64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue inserts the item in priority order, after all previously
// enqueued items of the same priority.
func (q *Queue) Enqueue(item *Item) {
	if item == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	e := entry{item: item, seq: q.nextSeq}
	q.nextSeq++

	pos := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].item.Priority < item.Priority
	})
	q.entries = append(q.entries, entry{})
	copy(q.entries[pos+1:], q.entries[pos:])
	q.entries[pos] = e
}

// Dequeue removes and returns the highest-priority, earliest-inserted item.
// It returns nil when the queue is empty.
func (q *Queue) Dequeue() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	item := q.entries[0].item
	q.entries[0] = entry{}
	q.entries = q.entries[1:]
	return item
}

// Peek returns the item Dequeue would return, without removing it.
func (q *Queue) Peek() *Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0].item
}

// Size reports the number of queued items.
func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// Clear removes every queued item.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}

// Items returns a snapshot of queued items in current dequeue order.
func (q *Queue) Items() []*Item {
	q.mu.RLock()
	defer q.mu.RUnlock()
	items := make([]*Item, len(q.entries))
	for i, e := range q.entries {
		items[i] = e.item
	}
	return items
}
