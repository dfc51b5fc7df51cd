package entity

import "github.com/s3sim/core/message"

// PushOption carries layer-specific out-of-band data alongside a
// downward Push call, e.g. IP's routing_info/is_forward (spec.md §6).
type PushOption any

// PopOption carries layer-specific out-of-band data alongside an upward
// Pop call, e.g. IP's {src_ip, dst_ip, ttl} (spec.md §6).
type PopOption any

// ControlType tags a control-plane notification delivered via
// [ProtocolSession.Control], e.g. FIB_ADDROUTE / FIB_DELROUTE (spec.md
// §4.3).
type ControlType int

// ProtocolSession is the interface every layer of a [ProtocolGraph]
// implements: physical, MAC, IP, TCP/UDP masters, and the socket master.
// spec.md §9 models this as "an interface abstraction (trait/interface)
// with a tagged-variant outer wrapper for the well-known sessions."
type ProtocolSession interface {
	// ProtocolName returns the name this session is registered under in
	// its owning host's ProtocolGraph.
	ProtocolName() string

	// ProtocolNumber returns the numeric protocol identifier this
	// session is registered under (e.g. an IP protocol number).
	ProtocolNumber() int

	// Config applies already-parsed configuration attributes. Called
	// once per session during build_model.
	Config(attrs map[string]any) error

	// Init performs post-build initialization (e.g. binding channels).
	// Called once per session, in deterministic host order, during
	// init_model.
	Init()

	// Push delivers a message moving down the stack (application ->
	// physical). opt carries layer-specific data, see [PushOption].
	Push(msg *message.ProtocolMessage, opt PushOption) error

	// Pop delivers a message moving up the stack (physical ->
	// application). opt carries layer-specific data, see [PopOption].
	Pop(msg *message.ProtocolMessage, opt PopOption) error

	// Control delivers an out-of-band control notification, e.g. a FIB
	// route change.
	Control(kind ControlType, payload any) error
}

// SessionFactory constructs a new, unconfigured [ProtocolSession]
// instance. User-defined sessions register a factory under a name; the
// well-known sessions (ip, tcp, udp, simple_mac, simple_phy)
// register themselves the same way from their own packages' init().
type SessionFactory func() ProtocolSession

var sessionRegistry = map[string]SessionFactory{}

// RegisterSessionType registers a session constructor under name.
// Registering the same name twice is a programmer error (DuplicateProtocol,
// spec.md §7) and panics at init time rather than surfacing at runtime,
// matching spec.md §9's "registering unknown types is a build error."
func RegisterSessionType(name string, factory SessionFactory) {
	if _, exists := sessionRegistry[name]; exists {
		panic("entity: duplicate protocol session type: " + name)
	}
	sessionRegistry[name] = factory
}

// NewSessionByType constructs a new session of the given registered type.
func NewSessionByType(name string) (ProtocolSession, error) {
	factory, ok := sessionRegistry[name]
	if !ok {
		return nil, &UnknownProtocolError{Name: name}
	}
	return factory(), nil
}

// UnknownProtocolError reports a reference to an unregistered session type.
type UnknownProtocolError struct{ Name string }

func (e *UnknownProtocolError) Error() string {
	return "entity: unknown protocol session type: " + e.Name
}
