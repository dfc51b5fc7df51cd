package nic

import "github.com/s3sim/core/ltime"

// DroptailConfig configures a [DroptailQueue].
type DroptailConfig struct {
	// BitrateBps is the interface's bitrate in bits per second.
	BitrateBps float64

	// BufferBytes is the interface's transmit buffer size in bytes.
	BufferBytes int

	// LatencyTicks is a fixed per-packet latency added after the
	// transmission/queueing delay (distinct from the link's
	// propagation delay, which is applied by the link, not the NIC).
	LatencyTicks ltime.Time

	// JitterRange is in [0, 1]: the per-packet transmission-time jitter
	// is sampled uniformly from [-JitterRange, JitterRange] *
	// transmission_time.
	JitterRange float64

	// Scale is the simulated time scale (ticks per second, log10).
	Scale ltime.Scale
}

// DroptailQueue implements the droptail queueing discipline of spec.md
// §4.2: each enqueued packet accrues a transmission delay proportional to
// its length and the interface bitrate, plus jitter and the configured
// latency; packets that would overflow the buffer are dropped.
type DroptailQueue struct {
	cfg           DroptailConfig
	maxQueueDelay ltime.Time
	queueDelay    ltime.Time
	lastXmitTime  ltime.Time
}

// NewDroptailQueue creates a [DroptailQueue]. max_queue_delay =
// d2t(8*bufsize/bitrate) + 1, per spec.md §4.2.
func NewDroptailQueue(cfg DroptailConfig) *DroptailQueue {
	seconds := 8 * float64(cfg.BufferBytes) / cfg.BitrateBps
	return &DroptailQueue{
		cfg:           cfg,
		maxQueueDelay: ltime.D2T(seconds, cfg.Scale) + 1,
	}
}

// calibrate advances the queue's notion of drained backlog to `now`,
// matching spec.md §4.2: "Before each enqueue, calibrate: ... subtract
// (now − last_xmit_time) from queue_delay clamped at 0; update
// last_xmit_time = now."
func (q *DroptailQueue) calibrate(now ltime.Time) {
	elapsed := now - q.lastXmitTime
	q.queueDelay -= elapsed
	if q.queueDelay < 0 {
		q.queueDelay = 0
	}
	q.lastXmitTime = now
}

// transmissionTime returns d2t(8*lengthBytes/bitrate, scale).
func (q *DroptailQueue) transmissionTime(lengthBytes int) ltime.Time {
	seconds := 8 * float64(lengthBytes) / q.cfg.BitrateBps
	return ltime.D2T(seconds, q.cfg.Scale)
}

// jitter samples the per-packet jitter: uniform on
// [-jitter_range, jitter_range] * 8*lengthBytes/bitrate, in ticks, +1.
func (q *DroptailQueue) jitter(lengthBytes int, rng RNG) ltime.Time {
	if q.cfg.JitterRange <= 0 {
		return 0
	}
	seconds := 8 * float64(lengthBytes) / q.cfg.BitrateBps
	bound := q.cfg.JitterRange * seconds
	sample := rng.Float64()*2*bound - bound
	return ltime.D2T(sample, q.cfg.Scale) + 1
}

// Enqueue processes the arrival of an L-byte packet at time now. It
// returns drop=true if the packet must be dropped (the backlog would
// exceed max_queue_delay), or the delay (in ticks, relative to now) at
// which the packet should be scheduled for departure.
func (q *DroptailQueue) Enqueue(now ltime.Time, lengthBytes int, rng RNG) (drop bool, delay ltime.Time) {
	q.calibrate(now)

	jitter := q.jitter(lengthBytes, rng)
	txTime := q.transmissionTime(lengthBytes)
	test := q.queueDelay + txTime

	if test > q.maxQueueDelay {
		return true, 0
	}

	q.queueDelay = test + jitter + q.cfg.LatencyTicks
	return false, q.queueDelay
}

// QueueDelay returns the queue's current backlog, for tests and metrics.
func (q *DroptailQueue) QueueDelay() ltime.Time { return q.queueDelay }
