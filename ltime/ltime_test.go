package ltime_test

import (
	"testing"

	"github.com/s3sim/core/ltime"
	"github.com/stretchr/testify/require"
)

func TestD2TRoundTrip(t *testing.T) {
	// d2t(t2d(x, s), s) == x for integer x, per spec.md §8.
	cases := []struct {
		ticks ltime.Time
		scale ltime.Scale
	}{
		{0, 0},
		{1, 6},
		{1000000, 6},
		{42, 3},
		{-7, 2},
	}
	for _, tc := range cases {
		seconds := ltime.T2D(tc.ticks, tc.scale)
		got := ltime.D2T(seconds, tc.scale)
		require.Equal(t, tc.ticks, got)
	}
}

func TestD2TBasic(t *testing.T) {
	require.Equal(t, ltime.Time(1000000), ltime.D2T(1.0, 6))
	require.Equal(t, ltime.Time(500000), ltime.D2T(0.5, 6))
	require.Equal(t, ltime.Time(1), ltime.D2T(1.0, 0))
}
