package nic

import (
	"math/rand"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"

	"github.com/s3sim/core/ltime"
)

func TestDroptailAdmitsUnderBudget(t *testing.T) {
	q := NewDroptailQueue(DroptailConfig{
		BitrateBps:  1_000_000, // 1 Mbps
		BufferBytes: 10_000,    // 10 kB
		Scale:       ltime.Scale(6),
	})
	rng := rand.New(rand.NewSource(1))

	admitted, dropped := 0, 0
	now := ltime.Time(0)
	for i := 0; i < 100; i++ {
		drop, _ := q.Enqueue(now, 100, rng)
		if drop {
			dropped++
		} else {
			admitted++
		}
	}
	// 100 back-to-back 100-byte packets with no draining between arrivals
	// add up to exactly the 10kB buffer: the last one brings the backlog to
	// 80000 ticks, within max_queue_delay = 80000+1, so none is dropped.
	require.Equal(t, 100, admitted)
	require.Zero(t, dropped)
	require.Equal(t, 100, admitted+dropped)
}

func TestDroptailDrainsOverTime(t *testing.T) {
	q := NewDroptailQueue(DroptailConfig{
		BitrateBps:  1_000_000,
		BufferBytes: 10_000,
		Scale:       ltime.Scale(6),
	})
	rng := rand.New(rand.NewSource(2))

	drop, delay := q.Enqueue(0, 100, rng)
	require.False(t, drop)
	require.Greater(t, delay, ltime.Time(0))

	// After a long pause the backlog should have drained to 0, so the
	// next packet's delay is a single transmission time, the same as the
	// first packet's, rather than accumulated on top of the first.
	drop2, delay2 := q.Enqueue(ltime.Time(1_000_000), 100, rng)
	require.False(t, drop2)
	require.Equal(t, delay, delay2)
}

func TestREDDropsNearZeroBelowQMin(t *testing.T) {
	cfg := REDConfig{
		BitrateBps:   1_000_000,
		BufferBytes:  40_000,
		Scale:        ltime.Scale(6),
		Weight:       0.002,
		QMinBits:     5_000 * 8,
		QMaxBits:     15_000 * 8,
		QCapBits:     30_000 * 8,
		PMax:         0.1,
		MeanPktBytes: 500,
	}
	q := NewREDQueue(cfg)
	rng := rand.New(rand.NewSource(3))

	drops := 0
	now := ltime.Time(0)
	for i := 0; i < 50; i++ {
		drop, _ := q.Enqueue(now, 100, rng)
		if drop {
			drops++
		}
		now += 50
	}
	require.Zero(t, drops, "below qmin, RED must not drop")
}

func TestREDDropProbabilityNearMidRegion(t *testing.T) {
	// Drive avgque to sit inside [qmin, qmax) by repeated saturating
	// arrivals, then sample the empirical drop probability.
	cfg := REDConfig{
		BitrateBps:   1_000_000,
		BufferBytes:  40_000,
		Scale:        ltime.Scale(6),
		Weight:       0.5, // fast-tracking EWMA so avgque ~ queueBits quickly
		QMinBits:     5_000 * 8,
		QMaxBits:     15_000 * 8,
		QCapBits:     30_000 * 8,
		PMax:         0.1,
		MeanPktBytes: 500,
	}
	q := NewREDQueue(cfg)
	q.queueBits = 10_000 * 8
	q.avgque = 10_000 * 8
	q.lastUpdate = 0

	rng := rand.New(rand.NewSource(4))
	samples := make([]float64, 0, 2000)
	now := ltime.Time(0)
	for i := 0; i < 2000; i++ {
		q.queueBits = 10_000 * 8
		q.avgque = 10_000 * 8
		q.crossing = true
		drop, _ := q.Enqueue(now, 500, rng)
		if drop {
			samples = append(samples, 1)
		} else {
			samples = append(samples, 0)
		}
		now += 1
	}
	mean, err := stats.Mean(samples)
	require.NoError(t, err)
	// Expected loss at avgque=10k with qmin=5k, qmax=15k, pmax=0.1:
	// (10k-5k)/(15k-5k)*0.1 = 0.05, before wait-modulation noise.
	require.InDelta(t, 0.05, mean, 0.05)
}

func TestREDSaturatesAboveQCap(t *testing.T) {
	cfg := REDConfig{
		BitrateBps:   1_000_000,
		BufferBytes:  40_000,
		Scale:        ltime.Scale(6),
		Weight:       0.5,
		QMinBits:     5_000 * 8,
		QMaxBits:     15_000 * 8,
		QCapBits:     30_000 * 8,
		PMax:         0.1,
		MeanPktBytes: 500,
	}
	q := NewREDQueue(cfg)
	q.queueBits = 35_000 * 8
	q.avgque = 35_000 * 8
	q.crossing = true
	q.lastUpdate = 0

	rng := rand.New(rand.NewSource(5))
	drop, _ := q.Enqueue(0, 500, rng)
	require.True(t, drop, "above qcap, RED must drop deterministically")
}
