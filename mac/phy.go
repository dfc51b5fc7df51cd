package mac

import (
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/nic"
	"github.com/s3sim/core/scheduler"
)

// SimplePhy implements the physical layer (spec.md §4.2's consumer): on
// Push, it asks its nic queue whether to admit the packet and, if so,
// schedules it for cross-channel delivery at the computed delay; on Pop
// (invoked by the channel's delivery handler registered at AddLink time)
// it hands the message up to MAC.
type SimplePhy struct {
	upper entity.ProtocolSession

	timeline    *scheduler.Timeline
	sched       *scheduler.Engine
	outChannel  scheduler.ChannelID
	queue       nic.Queue
	rng         nic.RNG
}

// NewSimplePhy creates a [SimplePhy] bound to the given timeline/engine,
// outbound channel, and queueing discipline.
func NewSimplePhy(sched *scheduler.Engine, timeline *scheduler.Timeline, outChannel scheduler.ChannelID, queue nic.Queue, rng nic.RNG) *SimplePhy {
	if rng == nil {
		rng = nic.NewDefaultRNG()
	}
	return &SimplePhy{sched: sched, timeline: timeline, outChannel: outChannel, queue: queue, rng: rng}
}

func init() {
	entity.RegisterSessionType("simple_phy", func() entity.ProtocolSession {
		return &SimplePhy{}
	})
}

// SetUpper attaches the MAC session above.
func (p *SimplePhy) SetUpper(s entity.ProtocolSession) { p.upper = s }

func (p *SimplePhy) ProtocolName() string        { return "simple_phy" }
func (p *SimplePhy) ProtocolNumber() int         { return 0 }
func (p *SimplePhy) Config(map[string]any) error { return nil }
func (p *SimplePhy) Init()                       {}

// Push runs the configured queueing discipline against the message's
// on-the-wire length and, if admitted, schedules it for delivery on the
// outbound channel at the computed delay (spec.md §4.2, §3's "outbound
// flow" description).
func (p *SimplePhy) Push(msg *message.ProtocolMessage, opt entity.PushOption) error {
	length := message.PackingSize(msg)
	now := p.timeline.Now()
	drop, delay := p.queue.Enqueue(now, length, p.rng)
	if drop {
		msg.EraseAll()
		return nil
	}
	p.sched.Schedule(p.timeline, p.outChannel, msg, delay, 0)
	return nil
}

// Pop hands msg up to the MAC session. It is invoked directly by the
// channel delivery handler registered in entity.Engine.AddLink, not by
// another session's Push — physical-layer "reception" is the channel
// firing, not a call from below.
func (p *SimplePhy) Pop(msg *message.ProtocolMessage, opt entity.PopOption) error {
	return p.upper.Pop(msg, opt)
}

func (p *SimplePhy) Control(kind entity.ControlType, payload any) error { return nil }
