package udp

import (
	"github.com/pkg/errors"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/ip"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/signal"
)

// Master is the per-host UDP protocol session registered in a host's
// [entity.ProtocolGraph]: it demultiplexes inbound datagrams by 4-tuple
// to a [Session], creating sessions on request from the socket layer
// above (spec.md §4.6's "Demux (master pop)").
type Master struct {
	lower  entity.ProtocolSession
	srcIP  addr.IPAddr
	sessions []*Session
}

// NewMaster creates an unwired UDP [Master].
func NewMaster() *Master { return &Master{} }

func init() {
	entity.RegisterSessionType("udp", func() entity.ProtocolSession {
		return NewMaster()
	})
}

func (m *Master) ProtocolName() string   { return "udp" }
func (m *Master) ProtocolNumber() int    { return ip.ProtocolUDP }
func (m *Master) Config(map[string]any) error { return nil }
func (m *Master) Init()                  {}

// SetLower attaches the IP session this master pushes outbound
// datagrams into.
func (m *Master) SetLower(s entity.ProtocolSession) { m.lower = s }

// SetLocalIP records this host's IP, used as the src_ip stamped on new
// sessions.
func (m *Master) SetLocalIP(a addr.IPAddr) { m.srcIP = a }

// NewSession creates and registers a new UDP [Session] bound to
// srcPort, wired to this master's lower session, with raiser receiving
// the session's signals (typically the owning socket).
func (m *Master) NewSession(srcPort uint16, raiser signal.Raiser) *Session {
	s := NewSession(m.lower, raiser, m.srcIP, srcPort)
	m.sessions = append(m.sessions, s)
	return s
}

// RemoveSession unregisters a session, e.g. on socket close.
func (m *Master) RemoveSession(s *Session) {
	for i, cand := range m.sessions {
		if cand == s {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return
		}
	}
}

// Push is unused on the master itself: individual [Session]s push
// directly to the lower IP session (spec.md §4.6's send path does not
// route back through the master).
func (m *Master) Push(msg *message.ProtocolMessage, opt entity.PushOption) error {
	return errors.New("udp: Master.Push is not used; push via a Session")
}

// Pop demultiplexes an inbound datagram to the matching session: an
// exact 4-tuple match on a connected session takes priority, else a
// session still bound to ANYDEST adopts the sender as its peer
// (spec.md §4.6). No match: silently dropped.
func (m *Master) Pop(msg *message.ProtocolMessage, opt entity.PopOption) error {
	popt, ok := opt.(ip.PopOptions)
	if !ok {
		msg.EraseAll()
		return errors.New("udp: Pop requires ip.PopOptions")
	}
	hdr, ok := msg.Header.(*Header)
	if !ok {
		msg.EraseAll()
		return errors.New("udp: Pop expects a udp.Header at the chain head")
	}
	payload := msg.Drop()
	dm, ok := payload.Header.(*message.DataMessage)
	if !ok {
		payload.EraseAll()
		return errors.New("udp: Pop expects a DataMessage payload")
	}

	var adopt *Session
	for _, s := range m.sessions {
		exact, adoptable := s.Matches(popt.SrcIP, hdr.SrcPort, hdr.DstPort)
		if exact {
			s.deliver(dm)
			return nil
		}
		if adoptable && adopt == nil {
			adopt = s
		}
	}
	if adopt != nil {
		adopt.Adopt(popt.SrcIP, hdr.SrcPort)
		adopt.deliver(dm)
		return nil
	}
	payload.EraseAll()
	return nil
}

func (m *Master) Control(kind entity.ControlType, payload any) error { return nil }
