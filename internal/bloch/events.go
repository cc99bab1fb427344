package bloch

import "container/heap"

// Event is work scheduled at a simulation time. Periodic events are
// rescheduled Period seconds after each firing.
type Event struct {
	At     float64
	Period float64
	Tag    string
	Fire   func(s *Sim)

	seq uint64
}

type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].At != h[j].At {
		return h[i].At < h[j].At
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*Event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// EventQueue orders events by time, then by insertion.
type EventQueue struct {
	h   eventHeap
	seq uint64
}

// Push adds e to the queue.
func (q *EventQueue) Push(e Event) {
	q.seq++
	e.seq = q.seq
	heap.Push(&q.h, &e)
}

// Len reports the number of pending events.
func (q *EventQueue) Len() int { return q.h.Len() }

// Next returns the time of the earliest pending event.
func (q *EventQueue) Next() (float64, bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h[0].At, true
}

// PopDue removes and returns the earliest event at or before now.
func (q *EventQueue) PopDue(now float64) (Event, bool) {
	if q.h.Len() == 0 || q.h[0].At > now {
		return Event{}, false
	}
	return *heap.Pop(&q.h).(*Event), true
}

// Cancel drops every event carrying tag and returns how many were dropped.
func (q *EventQueue) Cancel(tag string) int {
	kept := q.h[:0]
	n := 0
	for _, e := range q.h {
		if e.Tag == tag {
			n++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.h); i++ {
		q.h[i] = nil
	}
	q.h = kept
	heap.Init(&q.h)
	return n
}

// Pending reports whether an event with tag is queued.
func (q *EventQueue) Pending(tag string) bool {
	for _, e := range q.h {
		if e.Tag == tag {
			return true
		}
	}
	return false
}

// Clear drops every pending event.
func (q *EventQueue) Clear() {
	clear(q.h)
	q.h = q.h[:0]
}
