package combat

import (
	"sync"

	"github.com/udisondev/realmgo/internal/protocol"
)

// Hit is one resolved combat event waiting to land. Immutable once
// enqueued; produced by the damage formula, consumed exactly once by the
// queue drain.
type Hit struct {
	Kind   protocol.HitKind
	Amount int
}

// HitQueue buffers pending hits for one combat, decoupling "an attack was
// decided" from "the attack lands this tick".
type HitQueue struct {
	mu   sync.Mutex
	hits []Hit
}

// Enqueue appends a hit to the back of the queue.
func (q *HitQueue) Enqueue(h Hit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hits = append(q.hits, h)
}

// Dequeue pops the oldest pending hit.
func (q *HitQueue) Dequeue() (Hit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.hits) == 0 {
		return Hit{}, false
	}
	h := q.hits[0]
	q.hits = q.hits[1:]
	return h, true
}

// Clear discards all pending hits. Called when contact with the target is
// lost; stale hits never carry over to the next exchange.
func (q *HitQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hits = q.hits[:0]
}

// Len returns the number of pending hits.
func (q *HitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.hits)
}
