package tcp

import "github.com/s3sim/core/ltime"

// Jacobson/Karels shift constants (spec.md §4.4.5).
const (
	RTTShift    = 3
	RTTVarShift = 2
)

// backoffTable is the retransmit-timer backoff multiplier sequence,
// capped at 64 (spec.md §4.4.5).
var backoffTable = []ltime.Time{1, 2, 4, 8, 16, 32, 64}

func backoffAt(nrxmits int) ltime.Time {
	if nrxmits >= len(backoffTable) {
		return backoffTable[len(backoffTable)-1]
	}
	return backoffTable[nrxmits]
}

func minTimeout(scale ltime.Scale) ltime.Time { return ltime.D2T(1, scale) }
func maxTimeout(scale ltime.Scale) ltime.Time { return ltime.D2T(64, scale) }

func clampTimeout(v ltime.Time, scale ltime.Scale) ltime.Time {
	if lo := minTimeout(scale); v < lo {
		return lo
	}
	if hi := maxTimeout(scale); v > hi {
		return hi
	}
	return v
}

func atLeastOne(v ltime.Time) ltime.Time {
	if v < 1 {
		return 1
	}
	return v
}

func abs(v ltime.Time) ltime.Time {
	if v < 0 {
		return -v
	}
	return v
}

// RTTEstimator tracks the Jacobson/Karels smoothed-RTT estimate and the
// resulting retransmit timeout (spec.md §4.4.5).
type RTTEstimator struct {
	Scale       ltime.Scale
	SlowTimeout ltime.Time

	RttSmoothed ltime.Time
	RttVar      ltime.Time
	Rto         ltime.Time
	NRxmits     int
}

// NewRTTEstimator creates an estimator reset to its CLOSED-state initial
// timeout (spec.md §4.4.2's CLOSED entry action).
func NewRTTEstimator(scale ltime.Scale, slowTimeout ltime.Time) *RTTEstimator {
	e := &RTTEstimator{Scale: scale, SlowTimeout: slowTimeout}
	e.Reset()
	return e
}

// Reset restores the estimator to its connection-open initial state.
func (e *RTTEstimator) Reset() {
	e.RttSmoothed = 0
	e.RttVar = 3 * ltime.Time(1<<RTTVarShift)
	e.Rto = clampTimeout(e.SlowTimeout, e.Scale)
	e.NRxmits = 0
}

// UpdateTimeout folds a fresh RTT measurement into the smoothed estimate
// and recomputes rto (spec.md §4.4.5).
func (e *RTTEstimator) UpdateTimeout(rttMeasured ltime.Time) {
	if e.RttSmoothed > 0 {
		delta := rttMeasured - (e.RttSmoothed >> RTTShift)
		e.RttSmoothed = atLeastOne(e.RttSmoothed + delta)
		e.RttVar = atLeastOne(e.RttVar + (abs(delta) - (e.RttVar >> RTTVarShift)))
	} else {
		e.RttSmoothed = (rttMeasured + 1) << RTTShift
		e.RttVar = (rttMeasured + 1) << (RTTVarShift - 1)
	}
	e.Rto = clampTimeout(e.SlowTimeout*((e.RttSmoothed>>RTTShift)+e.RttVar), e.Scale)
}

// BackoffTimeout recomputes rto after a retransmit timeout, applying the
// exponential backoff multiplier for the current retry count (spec.md
// §4.4.5).
func (e *RTTEstimator) BackoffTimeout() {
	b := backoffAt(e.NRxmits)
	e.Rto = clampTimeout(e.SlowTimeout*b*((e.RttSmoothed>>RTTShift)+e.RttVar), e.Scale)
}

// NextAlignedTick computes the next absolute instant a period-t timer
// phase-aligned to boot should fire, given the current time now, without
// drifting (spec.md §4.6: "next = t·(1+floor((now+boot)/t)) − now − boot"
// expressed here as the absolute next-fire time rather than a delta).
func NextAlignedTick(t, now, boot ltime.Time) ltime.Time {
	if t <= 0 {
		return now
	}
	k := (now + boot) / t
	return t*(1+k) - boot
}
