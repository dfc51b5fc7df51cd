package scheduler

import (
	"sync"

	"github.com/pkg/errors"
)

// ChannelID identifies an in- or out-channel registered with an [Engine].
// Interfaces in the entity package allocate these when they attach to a
// link.
type ChannelID int

// mapping records that writes to an out-channel are delivered to a target
// in-channel after Delay ticks (the link's mapping_delay, spec.md §3).
type mapping struct {
	target ChannelID
	delay  Time
}

// inChannelBinding records the timeline an in-channel belongs to and the
// handler to invoke on delivery ("bind_proc" in spec.md's GLOSSARY).
type inChannelBinding struct {
	timeline *Timeline
	handler  func(payload any)
}

// channelRegistry is the engine's bookkeeping for the channel mapping
// protocol of spec.md §4.1 and §5. All mutation happens during
// BuildModel/InitModel (single-threaded); lookups during Schedule must be
// concurrency-safe because any timeline may call Schedule at any time
// during an epoch.
type channelRegistry struct {
	mu          sync.RWMutex
	outMappings map[ChannelID][]mapping
	inBindings  map[ChannelID]inChannelBinding
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{
		outMappings: map[ChannelID][]mapping{},
		inBindings:  map[ChannelID]inChannelBinding{},
	}
}

// RegisterInChannel binds an in-channel to the timeline that owns it and
// the handler invoked when an activation arrives.
func (r *channelRegistry) RegisterInChannel(id ChannelID, timeline *Timeline, handler func(payload any)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inBindings[id] = inChannelBinding{timeline: timeline, handler: handler}
}

// MapChannel maps an out-channel to an in-channel with the given
// mapping_delay, tightening the target timeline's lookahead accordingly.
// Returns an error if the in-channel has not been registered yet.
func (r *channelRegistry) MapChannel(from, to ChannelID, delay Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	binding, ok := r.inBindings[to]
	if !ok {
		return errors.Errorf("scheduler: map channel: target channel %d not registered", to)
	}
	if delay < 0 {
		return errors.Errorf("scheduler: map channel: negative mapping delay %d", delay)
	}
	r.outMappings[from] = append(r.outMappings[from], mapping{target: to, delay: delay})
	binding.timeline.tightenLookahead(delay)
	return nil
}

// validateLookahead checks the invariant in spec.md §3: "the mapping
// delay must be >= the target timeline's minimum cross-timeline
// lookahead." Because MapChannel derives the lookahead as the minimum
// observed delay, this can only fail if a timeline's lookahead was
// externally overridden to something larger than a mapping that feeds it
// — we check it anyway as the fatal-at-build-time safety net spec.md §4.1
// calls for.
func (r *channelRegistry) validateLookahead() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, maps := range r.outMappings {
		for _, m := range maps {
			binding := r.inBindings[m.target]
			if m.delay < binding.timeline.Lookahead {
				return errors.Errorf(
					"scheduler: mapping delay %d to channel %d violates timeline %d lookahead %d",
					m.delay, m.target, binding.timeline.ID, binding.timeline.Lookahead)
			}
		}
	}
	return nil
}

// deliver schedules an activation for delivery on every in-channel mapped
// from `from`, at from's-timeline-now + delay + mapping_delay for each
// mapping, tie-broken by tieSeed. It returns one [Handle] per mapping.
func (r *channelRegistry) deliver(fromTimeline *Timeline, from ChannelID, activation any, delay Time, tieSeed TieSeed) []*Handle {
	r.mu.RLock()
	maps := r.outMappings[from]
	r.mu.RUnlock()

	if len(maps) == 0 {
		return nil
	}
	baseTime := fromTimeline.Now() + delay
	handles := make([]*Handle, 0, len(maps))
	for _, m := range maps {
		r.mu.RLock()
		binding := r.inBindings[m.target]
		r.mu.RUnlock()
		when := baseTime + m.delay
		payload := activation
		handler := binding.handler
		h := binding.timeline.scheduleAt(when, tieSeed, func() {
			handler(payload)
		})
		handles = append(handles, h)
	}
	return handles
}
