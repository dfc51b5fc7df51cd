package scheduler_test

import (
	"testing"

	"github.com/s3sim/core/internal/alog"
	"github.com/s3sim/core/scheduler"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, n int) *scheduler.Engine {
	t.Helper()
	e, err := scheduler.NewEngine(n, &alog.NullLogger{})
	require.NoError(t, err)
	return e
}

func TestSingleTimelineOrdering(t *testing.T) {
	e := newEngine(t, 1)
	e.RegisterInChannel(0, 0, func(payload any) {})
	require.NoError(t, e.BuildModel())
	e.InitModel()
	defer e.Close()

	var order []int
	tl := e.Timeline(0)
	// schedule out of order; they must fire in time order.
	tl.Schedule(30, 0, func() { order = append(order, 3) })
	tl.Schedule(10, 0, func() { order = append(order, 1) })
	tl.Schedule(20, 0, func() { order = append(order, 2) })

	clock, err := e.Advance(scheduler.StopBeforeTime, 100, scheduler.StopOnAll, nil)
	require.NoError(t, err)
	require.Equal(t, scheduler.Time(100), clock)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestTieBrokenByTieSeedThenInsertion(t *testing.T) {
	e := newEngine(t, 1)
	e.RegisterInChannel(0, 0, func(payload any) {})
	require.NoError(t, e.BuildModel())
	e.InitModel()
	defer e.Close()

	var order []int
	tl := e.Timeline(0)
	tl.Schedule(10, 5, func() { order = append(order, 2) })
	tl.Schedule(10, 1, func() { order = append(order, 1) })
	tl.Schedule(10, 5, func() { order = append(order, 3) }) // same tieSeed as first, later insertion

	_, err := e.Advance(scheduler.StopBeforeTime, 50, scheduler.StopOnAll, nil)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestCancelSkipsExecution(t *testing.T) {
	e := newEngine(t, 1)
	e.RegisterInChannel(0, 0, func(payload any) {})
	require.NoError(t, e.BuildModel())
	e.InitModel()
	defer e.Close()

	fired := false
	tl := e.Timeline(0)
	h := tl.Schedule(10, 0, func() { fired = true })
	h.Cancel()

	_, err := e.Advance(scheduler.StopBeforeTime, 50, scheduler.StopOnAll, nil)
	require.NoError(t, err)
	require.False(t, fired)
}

func TestCrossTimelineLookaheadEnforced(t *testing.T) {
	e := newEngine(t, 2)
	e.RegisterInChannel(1, 1, func(payload any) {})
	// mapping delay 5 establishes timeline 1's lookahead at 5.
	require.NoError(t, e.MapChannel(0, 1, 5))
	require.NoError(t, e.BuildModel())
	require.Equal(t, scheduler.Time(5), e.Timeline(1).Lookahead)
}

func TestCrossTimelineDelivery(t *testing.T) {
	e := newEngine(t, 2)
	var delivered scheduler.Time
	var gotPayload any
	e.RegisterInChannel(1, 1, func(payload any) {
		gotPayload = payload
		delivered = e.Timeline(1).Now()
	})
	require.NoError(t, e.MapChannel(0, 1, 5))
	require.NoError(t, e.BuildModel())
	e.InitModel()
	defer e.Close()

	tl0 := e.Timeline(0)
	tl0.Schedule(3, 0, func() {
		e.Schedule(tl0, 0, "hello", 2, 0) // total delay = 2 (local) + 5 (mapping)
	})

	_, err := e.Advance(scheduler.StopBeforeTime, 50, scheduler.StopOnAll, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", gotPayload)
	require.Equal(t, scheduler.Time(3+2+5), delivered)
}

func TestHeadOfQueueMonotonic(t *testing.T) {
	// invariant 8: head event time <= every subsequently dequeued event.
	e := newEngine(t, 1)
	e.RegisterInChannel(0, 0, func(payload any) {})
	require.NoError(t, e.BuildModel())
	e.InitModel()
	defer e.Close()

	var times []scheduler.Time
	tl := e.Timeline(0)
	for _, d := range []scheduler.Time{50, 10, 30, 20, 40} {
		d := d
		tl.Schedule(d, 0, func() { times = append(times, tl.Now()) })
	}
	_, err := e.Advance(scheduler.StopBeforeTime, 1000, scheduler.StopOnAll, nil)
	require.NoError(t, err)
	for i := 1; i < len(times); i++ {
		require.LessOrEqual(t, times[i-1], times[i])
	}
}
