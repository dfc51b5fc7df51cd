package tcp

import (
	"testing"

	"github.com/s3sim/core/ltime"
	"github.com/stretchr/testify/require"
)

func TestRTTEstimatorFirstMeasurementSeedsSmoothed(t *testing.T) {
	e := NewRTTEstimator(6, ltime.D2T(1, 6))
	e.UpdateTimeout(ltime.D2T(0.1, 6))
	require.Equal(t, (ltime.D2T(0.1, 6)+1)<<RTTShift, e.RttSmoothed)
	require.Greater(t, e.Rto, ltime.Time(0))
}

func TestRTTEstimatorClampsToBounds(t *testing.T) {
	e := NewRTTEstimator(0, 1)
	e.UpdateTimeout(1000)
	require.LessOrEqual(t, e.Rto, maxTimeout(0))
	require.GreaterOrEqual(t, e.Rto, minTimeout(0))
}

func TestBackoffTimeoutGrowsWithRetryCount(t *testing.T) {
	e := NewRTTEstimator(6, ltime.D2T(1, 6))
	// One slow-timer tick of measured RTT keeps rto (6s) below the 64s cap.
	e.UpdateTimeout(1)
	base := e.Rto
	e.NRxmits = 2
	e.BackoffTimeout()
	require.Greater(t, e.Rto, base)
}

func TestNextAlignedTickDoesNotDrift(t *testing.T) {
	period := ltime.Time(100)
	boot := ltime.Time(37)
	first := NextAlignedTick(period, 0, boot)
	second := NextAlignedTick(period, first, boot)
	require.Equal(t, period, second-first)
}
