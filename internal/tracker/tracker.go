package tracker

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// State represents the lifecycle of a tracked item.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

var allStates = []State{
	StatePending,
	StateProcessing,
	StateCompleted,
	StateFailed,
	StateCancelled,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	if _, ok := stateSet[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// IsTerminal reports whether a state ends an item's lifecycle.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Record is the per-item lifecycle record.
type Record struct {
	ID           string
	InputPath    string
	State        State
	StartedAt    time.Time
	FinishedAt   time.Time
	ErrorMessage string
	OutputPath   string
}

// Duration returns the processing duration when both timestamps are set,
// the elapsed time for an in-flight item, and zero otherwise.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if !r.FinishedAt.IsZero() {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Summary aggregates the current view over all records.
type Summary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// IsComplete reports whether every record reached a terminal state.
func (s Summary) IsComplete() bool {
	return s.Total > 0 && s.Completed+s.Failed+s.Cancelled == s.Total
}

// SuccessRate returns completed/(completed+failed), or 0 when nothing
// terminal-with-outcome exists yet.
func (s Summary) SuccessRate() float64 {
	denominator := s.Completed + s.Failed
	if denominator == 0 {
		return 0
	}
	return float64(s.Completed) / float64(denominator)
}

// Elapsed returns the wall time spent on the batch so far.
func (s Summary) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// UpdateOption supplies optional fields on a state transition.
type UpdateOption func(*Record)

// WithInputPath records the source location for an item at intake.
func WithInputPath(path string) UpdateOption {
	return func(r *Record) {
		r.InputPath = path
	}
}

// WithOutputPath records the output location for a completed item.
func WithOutputPath(path string) UpdateOption {
	return func(r *Record) {
		r.OutputPath = path
	}
}

// WithError records the failure message for a failed item.
func WithError(message string) UpdateOption {
	return func(r *Record) {
		r.ErrorMessage = message
	}
}

// Tracker maps item ids to their lifecycle records.
type Tracker struct {
	mu         sync.RWMutex
	records    map[string]*Record
	order      []string
	batchStart time.Time
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{records: make(map[string]*Record)}
}

// Add registers a new item in the pending state. The first item added
// marks the batch start time. Adding a known id is an error.
func (t *Tracker) Add(id string, opts ...UpdateOption) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.records[id]; exists {
		return fmt.Errorf("item %s is already tracked", id)
	}
	record := &Record{ID: id, State: StatePending}
	for _, opt := range opts {
		opt(record)
	}
	t.records[id] = record
	t.order = append(t.order, id)
	if t.batchStart.IsZero() {
		t.batchStart = time.Now()
	}
	return nil
}

// Update transitions an item into the given state, stamping the start time
// on entry to processing and the finish time on entry to a terminal state.
// Unknown ids and unknown states are errors; transition legality is the
// caller's responsibility.
func (t *Tracker) Update(id string, state State, opts ...UpdateOption) error {
	if _, ok := stateSet[state]; !ok {
		return fmt.Errorf("unknown state %q", state)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	record, exists := t.records[id]
	if !exists {
		return fmt.Errorf("item %s is not tracked", id)
	}

	record.State = state
	now := time.Now()
	if state == StateProcessing && record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	if state.IsTerminal() && record.FinishedAt.IsZero() {
		record.FinishedAt = now
	}
	for _, opt := range opts {
		opt(record)
	}
	return nil
}

// Record returns a copy of the record for id.
func (t *Tracker) Record(id string) (Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, exists := t.records[id]
	if !exists {
		return Record{}, fmt.Errorf("item %s is not tracked", id)
	}
	return *record, nil
}

// All returns copies of every record in registration order.
func (t *Tracker) All() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}

// InState returns the ids of all items currently in the given state,
// in registration order.
func (t *Tracker) InState(state State) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var ids []string
	for _, id := range t.order {
		if t.records[id].State == state {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len reports the number of tracked items.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Summary scans all records and returns the aggregate view. Once every
// record is terminal, the batch finish time is the latest terminal
// finish time.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summary := Summary{Total: len(t.records), StartedAt: t.batchStart}
	var lastFinish time.Time
	for _, record := range t.records {
		switch record.State {
		case StatePending:
			summary.Pending++
		case StateProcessing:
			summary.Processing++
		case StateCompleted:
			summary.Completed++
		case StateFailed:
			summary.Failed++
		case StateCancelled:
			summary.Cancelled++
		}
		if record.State.IsTerminal() && record.FinishedAt.After(lastFinish) {
			lastFinish = record.FinishedAt
		}
	}
	if summary.IsComplete() {
		summary.FinishedAt = lastFinish
	}
	return summary
}
