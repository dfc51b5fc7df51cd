package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/s3sim/core/ltime"
)

// StopMode selects how [Engine.Advance] decides when to stop.
type StopMode int

const (
	// StopBeforeTime stops once the simulated clock would reach or pass
	// the given time.
	StopBeforeTime StopMode = iota
	// StopFunction stops according to a caller-supplied predicate,
	// evaluated once per epoch against every timeline's current time.
	StopFunction
)

// StopCombinator selects how per-timeline stop predicates combine.
type StopCombinator int

const (
	// StopOnAny stops as soon as any timeline's predicate is satisfied.
	StopOnAny StopCombinator = iota
	// StopOnAll stops only once every timeline's predicate is satisfied.
	StopOnAll
)

// StopFunc is evaluated once per epoch for a single timeline's current
// time; used only in StopFunction mode.
type StopFunc func(timelineNow Time) bool

// Engine drives N timelines through barrier-synchronized epochs. The zero
// value is invalid; use [NewEngine].
type Engine struct {
	logger ltime.Logger

	timelines []*Timeline
	reg       *channelRegistry

	globalLookahead Time

	errMu   sync.Mutex
	errFunc func(error)
	failed  atomic.Bool

	top    *cyclicBarrier
	bottom *cyclicBarrier

	epochEnd atomic.Int64
	stopped  atomic.Bool

	wg      sync.WaitGroup
	started bool
}

// NewEngine creates an [Engine] with n timelines (n = total_timeline from
// spec.md §6). Timelines are numbered 0..n-1.
func NewEngine(n int, logger ltime.Logger) (*Engine, error) {
	if n <= 0 {
		return nil, errors.New("scheduler: total_timeline must be >= 1")
	}
	e := &Engine{
		logger: logger,
		reg:    newChannelRegistry(),
	}
	for i := 0; i < n; i++ {
		e.timelines = append(e.timelines, NewTimeline(i, logger))
	}
	e.errFunc = func(err error) {
		logger.Warnf("scheduler: unhandled error: %s", err.Error())
	}
	return e, nil
}

// Timeline returns timeline i.
func (e *Engine) Timeline(i int) *Timeline { return e.timelines[i] }

// NumTimelines returns the number of timelines.
func (e *Engine) NumTimelines() int { return len(e.timelines) }

// SetErrorHandler installs the pluggable error handler described in
// spec.md §7. It must be called before [Engine.InitModel] starts the
// timeline worker goroutines.
func (e *Engine) SetErrorHandler(f func(error)) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	e.errFunc = f
}

func (e *Engine) reportError(err error) {
	e.failed.Store(true)
	e.errMu.Lock()
	f := e.errFunc
	e.errMu.Unlock()
	f(err)
}

// RegisterInChannel binds an in-channel id to a timeline and its delivery
// handler. Must be called during BuildModel, before any MapChannel call
// that targets it.
func (e *Engine) RegisterInChannel(id ChannelID, timelineID int, handler func(payload any)) {
	e.reg.RegisterInChannel(id, e.timelines[timelineID], handler)
}

// MapChannel maps an out-channel to an in-channel with the given
// mapping_delay (a link's computed delay). This is the operation that
// establishes cross-timeline lookahead (spec.md §3, §4.1): it forbids
// nothing by itself, but every mapping into a timeline tightens that
// timeline's Lookahead to the minimum such delay.
func (e *Engine) MapChannel(from, to ChannelID, delay Time) error {
	return e.reg.MapChannel(from, to, delay)
}

// BuildModel finalizes timeline lookaheads and validates that no mapping
// violates the lookahead invariant. Entity construction itself (the
// host/interface/link tree) is the entity package's job; by the time
// entity.BuildModel calls this, every channel has been registered and
// mapped.
func (e *Engine) BuildModel() error {
	if err := e.reg.validateLookahead(); err != nil {
		return errors.Wrap(err, "scheduler: build_model")
	}
	e.globalLookahead = 0
	for _, t := range e.timelines {
		if t.Lookahead == 0 {
			continue
		}
		if e.globalLookahead == 0 || t.Lookahead < e.globalLookahead {
			e.globalLookahead = t.Lookahead
		}
	}
	if e.globalLookahead == 0 {
		// No cross-timeline links: fall back to a permissive epoch size so
		// a single-timeline model still makes progress one event at a time
		// is unnecessary; use a large window instead.
		e.globalLookahead = 1 << 30
	}
	return nil
}

// InitModel starts the timeline worker goroutines. Entities' own init
// traversal (calling each session's init in deterministic order) is the
// entity package's responsibility and should run before InitModel, since
// InitModel only starts the barrier-driven workers.
func (e *Engine) InitModel() {
	if e.started {
		return
	}
	e.started = true
	n := len(e.timelines) + 1 // + driver
	e.top = newCyclicBarrier(n)
	e.bottom = newCyclicBarrier(n)
	for _, t := range e.timelines {
		e.wg.Add(1)
		go e.timelineWorker(t)
	}
}

func (e *Engine) timelineWorker(t *Timeline) {
	defer e.wg.Done()
	for {
		e.top.Wait()
		if e.stopped.Load() {
			return
		}
		epochEnd := Time(e.epochEnd.Load())
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.reportError(errors.Errorf("scheduler: timeline %d panic: %v", t.ID, r))
				}
			}()
			t.runUntil(epochEnd)
		}()
		e.bottom.Wait()
	}
}

// Close stops every timeline worker goroutine and waits for them to
// join. Safe to call multiple times.
func (e *Engine) Close() {
	if !e.started || e.stopped.Swap(true) {
		return
	}
	e.top.Wait()
	e.wg.Wait()
}

// Advance simulates until the stop condition holds, returning the
// simulated time reached. In StopBeforeTime mode it runs epochs until the
// clock reaches stopBefore. In StopFunction mode, fn is evaluated against
// every timeline's current time after each epoch and combined per combo.
func (e *Engine) Advance(mode StopMode, stopBefore Time, combo StopCombinator, fn StopFunc) (Time, error) {
	if !e.started {
		return 0, errors.New("scheduler: Advance called before InitModel")
	}
	clock := e.clock()
	for {
		if e.failed.Load() {
			return clock, errors.New("scheduler: engine failed, see error handler")
		}
		epochEnd := stopBefore
		if clock+e.globalLookahead < stopBefore {
			epochEnd = clock + e.globalLookahead
		}
		e.epochEnd.Store(int64(epochEnd))

		e.top.Wait()
		e.bottom.Wait()

		clock = epochEnd

		switch mode {
		case StopBeforeTime:
			if clock >= stopBefore {
				return clock, nil
			}
		case StopFunction:
			if fn == nil {
				return clock, errors.New("scheduler: StopFunction mode requires a StopFunc")
			}
			satisfied := combo == StopOnAll
			for _, t := range e.timelines {
				ok := fn(t.Now())
				switch combo {
				case StopOnAny:
					if ok {
						satisfied = true
					}
				case StopOnAll:
					if !ok {
						satisfied = false
					}
				}
			}
			if satisfied {
				return clock, nil
			}
			if clock >= stopBefore {
				return clock, nil
			}
		}
	}
}

// clock returns the maximum current time across all timelines (the
// engine's notion of "now" between epochs).
func (e *Engine) clock() Time {
	var max Time
	for _, t := range e.timelines {
		if n := t.Now(); n > max {
			max = n
		}
	}
	return max
}

// Schedule enqueues an activation for delivery on all channels mapped
// from fromChannel, tie-broken by tieSeed. The caller must be running on
// fromTimeline's own worker goroutine (i.e., inside an event closure) so
// that fromTimeline.Now() reflects the current simulated time. Returns
// one [Handle] per mapping (possibly none, if the channel has no
// mappings — this is not an error, e.g. a host with no attached link on
// that interface).
func (e *Engine) Schedule(fromTimeline *Timeline, fromChannel ChannelID, activation any, delay Time, tieSeed TieSeed) []*Handle {
	return e.reg.deliver(fromTimeline, fromChannel, activation, delay, tieSeed)
}

// GlobalLookahead returns the epoch size the driver currently uses.
func (e *Engine) GlobalLookahead() Time { return e.globalLookahead }
