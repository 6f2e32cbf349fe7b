package scheduler

import "container/heap"

// pendingMutation is a queued SchedulerMessage with its resolved planned
// apply beat and an arrival sequence number for the FIFO tiebreak (§4.E:
// "Ordering between mutations sharing the same planned beat: FIFO by
// arrival"). EndOfScene-tagged mutations carry plannedBeat == 0 and are
// never popped by beat; they are applied directly when an end-of-scene wrap
// is detected (see Scheduler.applyEndOfScene).
type pendingMutation struct {
	msg         SchedulerMessage
	plannedBeat float64
	endOfScene  bool
	seq         uint64
}

// pendingQueue implements container/heap.Interface ordered by
// (plannedBeat, seq), but the heap operations are not used: the Scheduler
// appends to items in arrival order and applyDue picks the earliest due
// entry by a linear scan, so items is not kept in heap order.
type pendingQueue struct {
	items []*pendingMutation
}

func (q *pendingQueue) Len() int { return len(q.items) }

func (q *pendingQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.plannedBeat != b.plannedBeat {
		return a.plannedBeat < b.plannedBeat
	}
	return a.seq < b.seq
}

func (q *pendingQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *pendingQueue) Push(x any) { q.items = append(q.items, x.(*pendingMutation)) }

func (q *pendingQueue) Pop() any {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

func (q *pendingQueue) Peek() (*pendingMutation, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

var _ = heap.Interface(&pendingQueue{})
