package nic

import "github.com/s3sim/core/ltime"

// REDConfig configures a [REDQueue]. Thresholds are in bits, matching
// spec.md §4.2.
type REDConfig struct {
	BitrateBps   float64
	BufferBytes  int
	LatencyTicks ltime.Time
	JitterRange  float64
	Scale        ltime.Scale

	Weight     float64 // EWMA coefficient, in [0, 1)
	QMinBits   float64
	QMaxBits   float64
	QCapBits   float64
	PMax       float64 // in (0, 1]
	MeanPktBytes float64

	// Wait selects the dup-suppression modulation formula of spec.md
	// §4.2 ("Apply Wait-option modulation"). When false, the simpler
	// non-waiting formula applies.
	Wait bool
}

// REDQueue implements Random Early Detection as specified in spec.md
// §4.2. Unlike droptail, REDQueue tracks an exponentially-weighted
// average queue occupancy and drops probabilistically before the buffer
// is actually full, to avoid global TCP synchronization.
type REDQueue struct {
	cfg REDConfig

	queueBits  float64 // current instantaneous occupancy, in bits
	avgque     float64
	lastUpdate ltime.Time
	vacateTime ltime.Time
	wasIdle    bool

	crossing bool
	interdropBytes float64
}

// NewREDQueue creates a [REDQueue].
func NewREDQueue(cfg REDConfig) *REDQueue {
	return &REDQueue{cfg: cfg, wasIdle: true}
}

// Enqueue processes the arrival of an L-byte packet at time now, per
// spec.md §4.2. It returns drop=true if the packet is dropped
// (deterministically, because the buffer would overflow or avgque is
// past qcap, or probabilistically per the computed loss probability),
// or the delay at which the packet should be scheduled for departure.
func (q *REDQueue) Enqueue(now ltime.Time, lengthBytes int, rng RNG) (drop bool, delay ltime.Time) {
	lengthBits := 8 * float64(lengthBytes)

	// Drain the queue by what would have transmitted since last_update.
	elapsedSeconds := ltime.T2D(now-q.lastUpdate, q.cfg.Scale)
	q.queueBits -= q.cfg.BitrateBps * elapsedSeconds
	if q.queueBits < 0 {
		q.queueBits = 0
	}
	q.lastUpdate = now

	if q.queueBits == 0 && !q.wasIdle {
		q.vacateTime = now
		q.wasIdle = true
	}

	m := 0.0
	if q.queueBits == 0 {
		idleSeconds := ltime.T2D(now-q.vacateTime, q.cfg.Scale)
		m = idleSeconds * q.cfg.BitrateBps / (8 * q.cfg.MeanPktBytes)
		if m < 0 {
			m = 0
		}
	}
	decay := 1.0
	base := 1 - q.cfg.Weight
	for i := 0; i < int(m)+1; i++ {
		decay *= base
	}
	q.avgque = q.avgque*decay + q.cfg.Weight*q.queueBits

	var loss float64
	switch {
	case q.queueBits == 0 || q.avgque < q.cfg.QMinBits:
		loss = 0
		q.crossing = false
	case !q.crossing:
		loss = 0
		q.crossing = true
		q.interdropBytes = 0
	case q.avgque < q.cfg.QMaxBits:
		loss = (q.avgque - q.cfg.QMinBits) / (q.cfg.QMaxBits - q.cfg.QMinBits) * q.cfg.PMax
	case q.avgque < q.cfg.QCapBits:
		loss = (q.avgque-q.cfg.QMaxBits)/(q.cfg.QCapBits-q.cfg.QMaxBits)*(1-q.cfg.PMax) + q.cfg.PMax
	default:
		loss = 1
	}

	if loss > 0 && loss < 1 {
		cnt := q.interdropBytes / q.cfg.MeanPktBytes
		if q.cfg.Wait {
			switch {
			case cnt*loss >= 1 && cnt*loss < 2:
				loss = loss / (2 - cnt*loss)
			case cnt*loss >= 2:
				loss = 1
			}
		} else {
			if cnt*loss < 1 {
				if cnt*loss < 1 && (1-cnt*loss) > 0 {
					loss = loss / (1 - cnt*loss)
				}
			} else {
				loss = 1
			}
		}
		loss = loss * float64(lengthBytes) / q.cfg.MeanPktBytes
		if loss < 0 {
			loss = 0
		}
		if loss > 1 {
			loss = 1
		}
	}

	bufBits := 8 * float64(q.cfg.BufferBytes)
	willDrop := q.queueBits+lengthBits > bufBits || loss >= 1 || rng.Float64() < loss

	if willDrop {
		q.interdropBytes = 0
		return true, 0
	}

	q.interdropBytes += float64(lengthBytes)
	q.queueBits += lengthBits
	q.wasIdle = false

	seconds := q.queueBits / q.cfg.BitrateBps
	departBase := ltime.D2T(seconds, q.cfg.Scale)
	jitterSeconds := 0.0
	if q.cfg.JitterRange > 0 {
		bound := q.cfg.JitterRange * (lengthBits / q.cfg.BitrateBps)
		jitterSeconds = rng.Float64()*2*bound - bound
	}
	jitterTicks := ltime.D2T(jitterSeconds, q.cfg.Scale)
	return false, departBase + q.cfg.LatencyTicks + jitterTicks
}

// AvgQueue returns the current EWMA average queue occupancy in bits, for
// tests and metrics.
func (q *REDQueue) AvgQueue() float64 { return q.avgque }
