package scheduler

import "sync"

// cyclicBarrier is a reusable rendezvous point for exactly n parties: the
// driver goroutine and every timeline worker goroutine. Once all n parties
// have called Wait, every call returns and the barrier resets itself for
// the next epoch. This backs the two per-epoch barriers (top and bottom)
// of spec.md §5.
type cyclicBarrier struct {
	n     int
	mu    sync.Mutex
	count int
	gen   chan struct{}
}

func newCyclicBarrier(n int) *cyclicBarrier {
	return &cyclicBarrier{n: n, gen: make(chan struct{})}
}

// Wait blocks until all n parties have called Wait for the current
// generation, then returns for all of them simultaneously.
func (b *cyclicBarrier) Wait() {
	b.mu.Lock()
	gen := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen = make(chan struct{})
		b.mu.Unlock()
		close(gen)
		return
	}
	b.mu.Unlock()
	<-gen
}
