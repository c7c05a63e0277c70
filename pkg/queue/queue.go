package queue

import (
	"sort"
	"sync"
)

// Payload is anything that can sit in the queue: a step filename or a
// deferred callable. Key must be stable and unique per logical
// payload — it backs the payload->priority index used by Delete and
// Update.
type Payload interface {
	Key() string
}

// StringPayload is the common case: a step filename.
type StringPayload string

func (s StringPayload) Key() string { return string(s) }

// DeferredFunc wraps an in-process callable queued via queue_code.
// Each DeferredFunc carries its own key so it can be individually
// deleted/updated like any other payload.
type DeferredFunc struct {
	ID string
	Fn func() error
}

func (d DeferredFunc) Key() string { return d.ID }

type entry struct {
	payload  Payload
	priority int
	seq      int // insertion order, breaks ties FIFO
}

// Queue is a stable min-priority queue over Payload values.
type Queue struct {
	mu      sync.Mutex
	entries []entry
	index   map[string]int // payload key -> priority
	nextSeq int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{index: make(map[string]int)}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Insert adds payload at priority, placing it after any existing
// entries of equal priority (stable FIFO ordering).
func (q *Queue) Insert(payload Payload, priority int) {
	q.InsertBounded(payload, priority, 0, 0)
}

// InsertBounded is Insert with optional lower/upper index hints into
// the sorted entry slice, narrowing the binary search the way
// Update's bounded re-insertion does in the source design. When
// lower == upper == 0 the full slice is searched.
func (q *Queue) InsertBounded(payload Payload, priority, lower, upper int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	lo, hi := 0, len(q.entries)
	if upper > 0 && upper <= hi {
		hi = upper
	}
	if lower > 0 && lower <= hi {
		lo = lower
	}

	// First index within [lo, hi) whose priority exceeds the new
	// entry's priority; insert there so equal priorities keep their
	// relative insertion order.
	at := lo + sort.Search(hi-lo, func(i int) bool {
		return q.entries[lo+i].priority > priority
	})

	e := entry{payload: payload, priority: priority, seq: q.nextSeq}
	q.nextSeq++

	q.entries = append(q.entries, entry{})
	copy(q.entries[at+1:], q.entries[at:])
	q.entries[at] = e

	q.index[payload.Key()] = priority
}

// Pop removes and returns the minimum-priority entry. ok is false if
// the queue is empty.
func (q *Queue) Pop() (Payload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return nil, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	delete(q.index, e.payload.Key())
	return e.payload, true
}

// Peek returns the minimum-priority entry without removing it.
func (q *Queue) Peek() (Payload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0].payload, true
}

// Delete removes the first queue entry whose payload key matches
// payload.Key(), returning its priority. ok is false if no such entry
// exists.
func (q *Queue) Delete(payload Payload) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deleteLocked(payload)
}

func (q *Queue) deleteLocked(payload Payload) (int, bool) {
	priority, ok := q.index[payload.Key()]
	if !ok {
		return 0, false
	}
	for i, e := range q.entries {
		if e.payload.Key() == payload.Key() {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	delete(q.index, payload.Key())
	return priority, true
}

// Update deletes payload (if present) and reinserts it at
// newPriority, using a search window derived from the direction of
// the priority change so a large queue does not need a full rescan.
func (q *Queue) Update(payload Payload, newPriority int) {
	q.mu.Lock()
	oldPriority, existed := q.deleteLocked(payload)
	q.mu.Unlock()

	if !existed {
		// spec §8: reordering a non-existent step is a no-op.
		return
	}

	lower, upper := 0, 0
	q.mu.Lock()
	if newPriority >= oldPriority {
		lower = sort.Search(len(q.entries), func(i int) bool {
			return q.entries[i].priority >= oldPriority
		})
	} else {
		upper = sort.Search(len(q.entries), func(i int) bool {
			return q.entries[i].priority > oldPriority
		})
	}
	q.mu.Unlock()

	q.InsertBounded(payload, newPriority, lower, upper)
}

// Contains reports whether payload is currently queued.
func (q *Queue) Contains(payload Payload) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[payload.Key()]
	return ok
}

// Snapshot returns the queued payloads in pop order, without
// mutating the queue. Intended for tests and --validate's dry listing.
func (q *Queue) Snapshot() []Payload {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Payload, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.payload
	}
	return out
}
