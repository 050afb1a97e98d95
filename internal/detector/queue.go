package detector

import "github.com/vburojevic/pilot/internal/domain"

// eventQueue is the bounded-growth FIFO of parsed events described in spec
// §2 component 4 and §4.5. It preserves insertion (and therefore per-source
// FIFO) order, supports marking an entry handled in place, and compacting
// away handled entries. Grounded on pilot_deadlock.c's EQ linked list, shaped
// as a Go slice the way the teacher's RingBuffer shapes a circular log
// buffer as a slice under a mutex — here growth is unbounded in principle
// but soft-capped (softCap) the way a real allocator-backed queue would be.
type eventQueue struct {
	items   []qItem
	softCap int
}

type qItem struct {
	ev      domain.Event
	handled bool
}

func newEventQueue(softCap int) *eventQueue {
	return &eventQueue{softCap: softCap}
}

// push appends a new event, returning a ResourceError-worthy bool if the
// soft cap would be exceeded (soft cap 0 disables the check).
func (q *eventQueue) push(ev domain.Event) bool {
	if q.softCap > 0 && len(q.items) >= q.softCap {
		return false
	}
	q.items = append(q.items, qItem{ev: ev})
	return true
}

// len returns the current number of retained entries (handled or not).
func (q *eventQueue) len() int { return len(q.items) }

// compact removes handled entries, preserving relative order, and returns
// the number of entries retained.
func (q *eventQueue) compact() int {
	kept := q.items[:0]
	for _, it := range q.items {
		if !it.handled {
			kept = append(kept, it)
		}
	}
	q.items = kept
	return len(q.items)
}
