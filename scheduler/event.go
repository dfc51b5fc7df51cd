// Package scheduler implements the conservative parallel event engine:
// timelines (logical processes) each driving a local event queue, a
// barrier-synchronized epoch driver, and the cross-timeline channel
// protocol used to deliver activations with a guaranteed minimum delay
// (lookahead).
package scheduler

import "github.com/s3sim/core/ltime"

// Time is a simulated tick count.
type Time = ltime.Time

// TieSeed breaks ties between events scheduled for the same Time. Per
// spec.md §4.1 it is host-derived so that replays produce identical
// traces: TieSeed(host.ids[0]*10^k + host.ids[1]).
type TieSeed int64

// HandleCode reports what happened to a scheduled event.
type HandleCode int

const (
	// Executed means the event's closure ran.
	Executed HandleCode = iota
	// Cancelled means the event was dequeued but not executed because
	// [Handle.Cancel] was called before it reached the head of the queue.
	Cancelled
)

// event is one entry in a timeline's queue.
type event struct {
	time      Time
	tieSeed   TieSeed
	seq       uint64
	fn        func()
	cancelled bool
	index     int // heap index, maintained by container/heap
}

// Handle lets the scheduler of an event cancel it before it fires.
// Cancellation does not refund time already spent (spec.md §4.1).
type Handle struct {
	ev *event
}

// Cancel marks the scheduled event as cancelled. If it has already
// executed, Cancel has no effect.
func (h *Handle) Cancel() {
	if h != nil && h.ev != nil {
		h.ev.cancelled = true
	}
}

// eventHeap is a binary min-heap ordered by (time, tieSeed, seq), which is
// exactly the determinism rule in spec.md §4.1 and §5.
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.time != b.time {
		return a.time < b.time
	}
	if a.tieSeed != b.tieSeed {
		return a.tieSeed < b.tieSeed
	}
	return a.seq < b.seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*event)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*h = old[:n-1]
	return ev
}
