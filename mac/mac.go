// Package mac implements the simple_mac and simple_phy protocol sessions
// of spec.md §6's "well-known sessions" list: a pass-through MAC layer
// (no addressing of its own, since every link in this model is either
// point-to-point or a hub where routing is entirely IP's job) and a
// physical layer that turns the nic package's queueing decision into a
// scheduled departure.
package mac

import (
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/message"
)

// SimpleMac is a pass-through MAC session: it has no address of its own
// and performs no framing, matching spec.md §4's description of the MAC
// layer as present mainly to keep the layering symmetric with the
// original simulator.
type SimpleMac struct {
	upper entity.ProtocolSession
	lower entity.ProtocolSession
}

// NewSimpleMac creates an unwired [SimpleMac].
func NewSimpleMac() *SimpleMac { return &SimpleMac{} }

func init() {
	entity.RegisterSessionType("simple_mac", func() entity.ProtocolSession {
		return NewSimpleMac()
	})
}

// SetUpper attaches the session above (IP) that receives popped frames.
func (m *SimpleMac) SetUpper(s entity.ProtocolSession) { m.upper = s }

// SetLower attaches the session below (simple_phy) that receives pushed
// frames.
func (m *SimpleMac) SetLower(s entity.ProtocolSession) { m.lower = s }

func (m *SimpleMac) ProtocolName() string   { return "simple_mac" }
func (m *SimpleMac) ProtocolNumber() int    { return 0 }
func (m *SimpleMac) Config(map[string]any) error { return nil }
func (m *SimpleMac) Init()                  {}

// Push forwards msg to the physical session unchanged.
func (m *SimpleMac) Push(msg *message.ProtocolMessage, opt entity.PushOption) error {
	return m.lower.Push(msg, opt)
}

// Pop forwards msg to the IP session unchanged.
func (m *SimpleMac) Pop(msg *message.ProtocolMessage, opt entity.PopOption) error {
	return m.upper.Pop(msg, opt)
}

func (m *SimpleMac) Control(kind entity.ControlType, payload any) error { return nil }
