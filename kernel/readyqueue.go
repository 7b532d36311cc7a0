package kernel

import "github.com/zhaojiahai/trochili/kernel/list"

// readyQueue is the fixed array of per-priority FIFO lists plus the
// non-empty bitmap. Priority 0 is highest urgency; the
// bitmap's bit b tracks whether lists[b] is non-empty so SelectNext stays
// O(1) (scan a machine word, don't walk the array).
type readyQueue struct {
	lists  []list.List
	bitmap []uint64 // one bit per priority, 64 priorities per word
}

func newReadyQueue(numPriorities int) *readyQueue {
	return &readyQueue{
		lists:  make([]list.List, numPriorities),
		bitmap: make([]uint64, (numPriorities+63)/64),
	}
}

func (q *readyQueue) setBit(p int) {
	q.bitmap[p/64] |= 1 << uint(p%64)
}

func (q *readyQueue) clearBit(p int) {
	q.bitmap[p/64] &^= 1 << uint(p%64)
}

func (q *readyQueue) bitSet(p int) bool {
	return q.bitmap[p/64]&(1<<uint(p%64)) != 0
}

// highestSet returns the lowest-numbered (highest-urgency) set bit, or -1
// if the bitmap is entirely clear.
func (q *readyQueue) highestSet() int {
	for word, bits := range q.bitmap {
		if bits == 0 {
			continue
		}
		for b := 0; b < 64; b++ {
			if bits&(1<<uint(b)) != 0 {
				p := word*64 + b
				if p >= len(q.lists) {
					return -1
				}
				return p
			}
		}
	}
	return -1
}

// enter inserts t at pos within its Priority's list and marks the bitmap.
func (q *readyQueue) enter(t *Thread, pos list.Position) {
	q.lists[t.Priority].AddFIFO(&t.queueNode, pos)
	q.setBit(t.Priority)
}

// leave removes t from whichever priority list it is linked into
// (determined by the priority the node was inserted under, which AddFIFO
// recorded implicitly via list identity) and clears the bitmap bit if that
// list is now empty. Callers must pass the priority t was enqueued at,
// since t.Priority may already have changed (priority inheritance) by the
// time leave is called.
func (q *readyQueue) leave(t *Thread, atPriority int) {
	q.lists[atPriority].Remove(&t.queueNode)
	if q.lists[atPriority].Empty() {
		q.clearBit(atPriority)
	}
}

// selectNext returns the head of the highest-urgency non-empty list, or
// nil if the ready queue is entirely empty.
func (q *readyQueue) selectNext() *Thread {
	p := q.highestSet()
	if p < 0 {
		return nil
	}
	n := q.lists[p].Front()
	if n == nil {
		return nil
	}
	return list.Owner[Thread](n)
}

// move relocates t from its current priority list to its new Priority's
// list (used by SetPriority when t is Ready), preserving FIFO position
// within the destination (tail — a boosted/lowered ready thread rejoins
// at the back of its new priority class, same as a freshly woken thread).
func (q *readyQueue) move(t *Thread, fromPriority int) {
	q.leave(t, fromPriority)
	q.enter(t, list.Tail)
}
