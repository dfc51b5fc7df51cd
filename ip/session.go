package ip

import (
	"github.com/pkg/errors"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/fib"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/message"
)

// Router is the subset of [fib.ForwardingTable] the IP session depends
// on, kept as an interface per spec.md §9's trait-based design note.
type Router interface {
	GetRoute(a addr.IPAddr) (fib.RouteInfo, bool)
}

// Session implements the IP layer (spec.md §4.3's consumer): TTL
// handling, local-delivery vs forwarding decision, and demux to
// transport masters by protocol number.
type Session struct {
	logger ltime.Logger

	router      Router
	localAddrs  map[addr.IPAddr]bool
	lowerByNic  map[entity.InterfaceID]entity.ProtocolSession
	ifaceIP     map[entity.InterfaceID]addr.IPAddr
	upperByProt map[int]entity.ProtocolSession

	defaultTTL uint8
}

// NewSession creates an unconfigured IP [Session]. DefaultTTL follows
// common practice (64); override via Config.
func NewSession(logger ltime.Logger) *Session {
	return &Session{
		logger:      logger,
		localAddrs:  make(map[addr.IPAddr]bool),
		lowerByNic:  make(map[entity.InterfaceID]entity.ProtocolSession),
		ifaceIP:     make(map[entity.InterfaceID]addr.IPAddr),
		upperByProt: make(map[int]entity.ProtocolSession),
		defaultTTL:  64,
	}
}

func init() {
	entity.RegisterSessionType("ip", func() entity.ProtocolSession {
		return NewSession(nil)
	})
}

// ProtocolName implements [entity.ProtocolSession].
func (s *Session) ProtocolName() string { return "ip" }

// ProtocolNumber implements [entity.ProtocolSession].
func (s *Session) ProtocolNumber() int { return 0 }

// Config applies configuration: "default_ttl" (int), the rest is wired
// by the composition code via the setters below rather than Config,
// since routers/lower sessions are live object references not scalars.
func (s *Session) Config(attrs map[string]any) error {
	if v, ok := attrs["default_ttl"]; ok {
		ttl, ok := v.(int)
		if !ok {
			return errors.New("ip: default_ttl must be an int")
		}
		s.defaultTTL = uint8(ttl)
	}
	return nil
}

// Init implements [entity.ProtocolSession]; IP has no deferred setup.
func (s *Session) Init() {}

// SetRouter attaches the forwarding table this session consults.
func (s *Session) SetRouter(r Router) { s.router = r }

// AddLocalAddress marks a as owned by this host, so packets addressed
// to it are delivered upward instead of forwarded.
func (s *Session) AddLocalAddress(a addr.IPAddr) { s.localAddrs[a] = true }

// RegisterLower attaches the MAC session reachable through the given
// interface, and that interface's own IP address (used as the source
// address stamped onto locally-originated packets routed out of it).
func (s *Session) RegisterLower(nic entity.InterfaceID, lower entity.ProtocolSession, ifaceIP addr.IPAddr) {
	s.lowerByNic[nic] = lower
	s.ifaceIP[nic] = ifaceIP
	s.AddLocalAddress(ifaceIP)
}

// RegisterUpper attaches the transport master that should receive
// packets carrying the given protocol number.
func (s *Session) RegisterUpper(protocol int, upper entity.ProtocolSession) {
	s.upperByProt[protocol] = upper
}

// ErrNoRoute, ErrTTLExpired, and ErrNoProtocol classify a Push/Pop
// failure per spec.md §7's NoRoute/TtlExpired/NoProtocol error kinds.
// They are sentinels so callers can classify with errors.Is; the
// message chain has already been reclaimed (EraseAll) by the time they
// are returned.
var (
	ErrNoRoute    = errors.New("ip: no route")
	ErrTTLExpired = errors.New("ip: ttl expired")
	ErrNoProtocol = errors.New("ip: no protocol")
)

// Push accepts a message from a transport master and, after attaching an
// IP header, routes it: looks up the next hop, stamps the requested TTL
// (or the session default when it is 0) without decrementing it, and
// pushes to the MAC session owning the outbound interface (spec.md §4.3,
// §7's NoRoute/TtlExpired codes).
func (s *Session) Push(msg *message.ProtocolMessage, opt entity.PushOption) error {
	popt, ok := opt.(PushOptions)
	if !ok {
		return errors.New("ip: Push requires ip.PushOptions")
	}
	ttl := popt.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl == 0 {
		msg.EraseAll()
		return ErrTTLExpired
	}
	route, ok := s.router.GetRoute(popt.DstIP)
	if !ok {
		msg.EraseAll()
		return ErrNoRoute
	}
	hdr := &Header{SrcIP: s.ifaceIP[route.Nic], DstIP: popt.DstIP, TTL: ttl, Protocol: popt.Protocol}
	chain := message.New(hdr)
	chain.Append(msg)

	lower, ok := s.lowerByNic[route.Nic]
	if !ok {
		return errors.Errorf("ip: no MAC session registered for nic %d", route.Nic)
	}
	return lower.Push(chain, ToBelowOptions{RoutingInfo: route, IsForward: false})
}

// Pop accepts a message arriving from MAC, strips the IP header,
// enforces TTL, and either demuxes to the local transport master or
// forwards it onward (spec.md §7).
func (s *Session) Pop(msg *message.ProtocolMessage, opt entity.PopOption) error {
	hdr, ok := msg.Header.(*Header)
	if !ok {
		return errors.New("ip: Pop expects an ip.Header at the chain head")
	}
	payload := msg.Drop()

	if s.localAddrs[hdr.DstIP] {
		upper, ok := s.upperByProt[hdr.Protocol]
		if !ok {
			payload.EraseAll()
			return ErrNoProtocol
		}
		popt := PopOptions{SrcIP: hdr.SrcIP, DstIP: hdr.DstIP, TTL: hdr.TTL}
		return upper.Pop(payload, popt)
	}

	if hdr.TTL <= 1 {
		payload.EraseAll()
		return ErrTTLExpired
	}
	hdr.TTL--

	route, ok := s.router.GetRoute(hdr.DstIP)
	if !ok {
		payload.EraseAll()
		return ErrNoRoute
	}
	lower, ok := s.lowerByNic[route.Nic]
	if !ok {
		payload.EraseAll()
		return ErrNoRoute
	}
	chain := message.New(hdr)
	chain.Append(payload)
	return lower.Push(chain, ToBelowOptions{RoutingInfo: route, IsForward: true})
}

// Control implements [entity.ProtocolSession]; IP does not currently
// react to FIB control notifications itself (fib.ForwardingTable
// notifies transport masters directly via their own listener
// registration when they care about route changes).
func (s *Session) Control(kind entity.ControlType, payload any) error { return nil }
