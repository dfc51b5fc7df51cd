package scheduler

import (
	"container/heap"
	"sync"

	"github.com/s3sim/core/ltime"
)

// Timeline is a logical process: it owns a local event queue and the
// hosts aligned to it (hosts are opaque to this package; entity.Host
// references its owning Timeline). No lock protects state mutated only
// from within the timeline's own goroutine; the queue itself is guarded
// because cross-timeline delivery pushes into it from other goroutines.
type Timeline struct {
	// ID identifies this timeline within its [Engine].
	ID int

	// Lookahead is the minimum delay the engine guarantees before any
	// cross-timeline activation reaches this timeline. It is derived
	// from the smallest mapping_delay of any channel mapped into this
	// timeline (spec.md §3, §4.1).
	Lookahead Time

	logger ltime.Logger

	mu    sync.Mutex
	queue eventHeap
	seq   uint64
	now   Time
}

// NewTimeline creates a [Timeline]. Lookahead should be set via
// [Timeline.tightenLookahead] as channel mappings are registered; pass 0
// here and let the engine compute it.
func NewTimeline(id int, logger ltime.Logger) *Timeline {
	return &Timeline{
		ID:     id,
		logger: logger,
		queue:  eventHeap{},
	}
}

// Now returns the timeline's current simulated time. Only meaningful
// between epochs (i.e., from the driver or from within an event closure);
// concurrent readers from other timelines should not call this.
func (t *Timeline) Now() Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// tightenLookahead lowers the timeline's lookahead to min(current, delay).
// A zero current lookahead means "unset"; the first call establishes it.
func (t *Timeline) tightenLookahead(delay Time) {
	if t.Lookahead == 0 || delay < t.Lookahead {
		t.Lookahead = delay
	}
}

// Schedule enqueues fn to run at time t.now+delay (delay must be >= 0),
// broken by tieSeed then insertion order, and returns a [Handle] that can
// cancel it before it fires. This is the primitive both local timers
// (TCP slow/fast timers, NIC departure events) and cross-timeline
// delivery (via [Engine.Schedule]) are built on; it is safe to call from
// any goroutine.
func (t *Timeline) Schedule(delay Time, tieSeed TieSeed, fn func()) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev := &event{
		time:    t.now + delay,
		tieSeed: tieSeed,
		seq:     t.seq,
		fn:      fn,
	}
	t.seq++
	heap.Push(&t.queue, ev)
	return &Handle{ev: ev}
}

// scheduleAt is like schedule but takes an absolute time, used by
// cross-timeline delivery where the delay already accounts for the
// sender's clock.
func (t *Timeline) scheduleAt(when Time, tieSeed TieSeed, fn func()) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev := &event{
		time:    when,
		tieSeed: tieSeed,
		seq:     t.seq,
		fn:      fn,
	}
	t.seq++
	heap.Push(&t.queue, ev)
	return &Handle{ev: ev}
}

// runUntil executes every queued event with time < epochEnd, in
// (time, tieSeed, insertion order), advancing t.now as it goes. It is the
// per-timeline half of the epoch loop described in spec.md §4.1: "Each
// timeline processes its queue while the head event time < epoch
// end-time, executing the event's closure (which may schedule further
// events)." Must be called only from this timeline's own worker
// goroutine.
func (t *Timeline) runUntil(epochEnd Time) {
	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.now = epochEnd
			t.mu.Unlock()
			return
		}
		head := t.queue[0]
		if head.time >= epochEnd {
			t.now = epochEnd
			t.mu.Unlock()
			return
		}
		heap.Pop(&t.queue)
		t.now = head.time
		t.mu.Unlock()

		if head.cancelled {
			continue
		}
		head.fn()
	}
}

// headTime returns the time of the queue's head event, or ok=false if the
// queue is empty. Exposed for testing invariant 8 of spec.md §8.
func (t *Timeline) headTime() (Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return 0, false
	}
	return t.queue[0].time, true
}
