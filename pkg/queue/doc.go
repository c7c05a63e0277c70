// Package queue implements the agent's step queue: a stable
// min-priority queue keyed by an integer priority, holding either step
// filenames or deferred in-process callables (spec §4.2).
//
// Entries are kept in a single priority-sorted slice. Ties are broken
// by insertion order (FIFO), which is the ordering guarantee steps
// depend on when they queue_step/queue_command into the remainder of
// a run. A payload->priority index backs Delete and Update; it holds
// one slot per distinct payload string, so two different payloads
// that stringify the same are not supported — acceptable because step
// filenames are unique by construction and deferred callables are
// only ever reprioritized through their own DeferredFunc.ID.
package queue
