package timing

import (
	"container/heap"
)

// EventQueue orders pending events by time. Events scheduled for the same
// nanosecond leave the queue in the order they were pushed, which is what
// makes a run reproducible.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Len() int
	Peek() Event
}

// EventQueueImpl is a binary heap keyed by (time, push sequence). The engine
// owns it; it is not safe for concurrent use.
type EventQueueImpl struct {
	heap eventHeap
	seq  uint64
}

// NewEventQueue creates an empty EventQueueImpl.
func NewEventQueue() *EventQueueImpl {
	return &EventQueueImpl{}
}

// Push adds an event.
func (q *EventQueueImpl) Push(evt Event) {
	heap.Push(&q.heap, entry{evt: evt, seq: q.seq})
	q.seq++
}

// Pop removes and returns the earliest event.
func (q *EventQueueImpl) Pop() Event {
	return heap.Pop(&q.heap).(entry).evt
}

// Len returns the number of pending events.
func (q *EventQueueImpl) Len() int {
	return len(q.heap)
}

// Peek returns the earliest event, or nil if the queue is empty.
func (q *EventQueueImpl) Peek() Event {
	if len(q.heap) == 0 {
		return nil
	}

	return q.heap[0].evt
}

type entry struct {
	evt Event
	seq uint64
}

type eventHeap []entry

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if ti, tj := h[i].evt.Time(), h[j].evt.Time(); ti != tj {
		return ti < tj
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(entry))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	last := old[len(old)-1]
	old[len(old)-1] = entry{}
	*h = old[:len(old)-1]

	return last
}
