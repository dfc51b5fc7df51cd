// Package nic implements per-interface transmission queueing disciplines:
// droptail and RED (Random Early Detection). Both compute, for each
// arriving packet, either a drop decision or a departure delay; they hold
// no reference to the scheduler or the wire — the caller (the physical
// layer session) is responsible for turning a non-drop result into a
// scheduled departure event.
package nic

import (
	"math/rand"
	"time"

	"github.com/s3sim/core/ltime"
)

// RNG is the randomness source used for jitter and RED's probabilistic
// drop decision, abstracted the way bassosimone/netem's LinkFwdRNG
// abstracts math/rand.Rand for testability.
type RNG interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64

	// Int63n returns a pseudo-random number in [0, n).
	Int63n(n int64) int64
}

var _ RNG = &rand.Rand{}

// Queue is satisfied by both [DroptailQueue] and [REDQueue]: given an
// arriving packet, decide whether to drop it or the delay at which it
// should depart.
type Queue interface {
	Enqueue(now ltime.Time, lengthBytes int, rng RNG) (drop bool, delay ltime.Time)
}

var (
	_ Queue = (*DroptailQueue)(nil)
	_ Queue = (*REDQueue)(nil)
)

// NewDefaultRNG creates a [RNG] seeded from the current time, for
// production use. Tests should inject a seeded *rand.Rand or a fake.
func NewDefaultRNG() RNG {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
