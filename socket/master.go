package socket

import (
	"github.com/pkg/errors"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/signal"
	"github.com/s3sim/core/tcp"
	"github.com/s3sim/core/udp"
)

// Master is a host's socket table: it allocates descriptors, binds them
// to a protocol's session, and drives blocking/non-blocking connect,
// accept, send, recv, and close (spec.md §4.5). It sits above whichever
// transport masters are registered in the host's [entity.ProtocolGraph].
type Master struct {
	graph *entity.ProtocolGraph

	sockets map[int]*Socket
	nextID  int
}

// NewMaster creates a socket [Master] bound to a host's protocol graph.
func NewMaster(graph *entity.ProtocolGraph) *Master {
	return &Master{graph: graph, sockets: make(map[int]*Socket)}
}

// NewSocket allocates an unbound descriptor, spec.md §4.5's socket().
func (m *Master) NewSocket() *Socket {
	id := m.allocID()
	sk := &Socket{ID: id}
	m.sockets[id] = sk
	return sk
}

// allocID hands out monotonically increasing ids that wrap around 0,
// skipping any still in use, mirroring socket_master.cc's socket() scan.
func (m *Master) allocID() int {
	for {
		id := m.nextID
		m.nextID++
		if m.nextID < 0 {
			m.nextID = 0
		}
		if _, taken := m.sockets[id]; !taken {
			return id
		}
	}
}

// Bind attaches sk to a freshly created session of the named protocol
// ("tcp" or "udp"), on port, spec.md §4.5's bind(). For tcp, 0 picks an
// ephemeral port the transport master allocates; udp requires an
// explicit port and rejects 0.
func (m *Master) Bind(sk *Socket, port uint16, protocol string) error {
	if sk.session != nil {
		return errors.New("socket: already bound")
	}
	switch protocol {
	case "tcp":
		proto, ok := m.graph.SessionByName("tcp")
		if !ok {
			return errors.New("socket: host has no tcp master")
		}
		master, ok := proto.(*tcp.Master)
		if !ok {
			return errors.New("socket: \"tcp\" session is not a *tcp.Master")
		}
		var sess *tcp.Session
		if port == 0 {
			sess = master.NewSession(sk)
		} else {
			sess = master.NewSessionOnPort(port, sk)
		}
		sk.session = sess
	case "udp":
		proto, ok := m.graph.SessionByName("udp")
		if !ok {
			return errors.New("socket: host has no udp master")
		}
		master, ok := proto.(*udp.Master)
		if !ok {
			return errors.New("socket: \"udp\" session is not a *udp.Master")
		}
		if port == 0 {
			return errors.New("socket: udp bind requires an explicit port")
		}
		sk.session = udpSession{master.NewSession(port, sk)}
	default:
		return errors.New("socket: unknown protocol " + protocol)
	}
	sk.proto = protocol
	return nil
}

func (m *Master) bound(sk *Socket) error {
	if sk.session == nil {
		return errors.New("socket: descriptor is not bound")
	}
	return nil
}

// Listen puts sk's session into the listening state, spec.md §4.5's
// listen().
func (m *Master) Listen(sk *Socket) error {
	if err := m.bound(sk); err != nil {
		return err
	}
	return sk.session.Listen()
}

// Connect issues an active open and parks cont until the handshake
// completes (OK_TO_SEND) or fails (an error signal), spec.md §4.5's
// connect()/connect1().
func (m *Master) Connect(sk *Socket, ip addr.IPAddr, port uint16, cont Continuation) {
	if err := m.bound(sk); err != nil {
		cont.Failure()
		return
	}
	if sk.connecting {
		cont.Failure()
		return
	}
	if err := sk.session.Connect(ip, port); err != nil {
		cont.Failure()
		return
	}
	sk.connecting = true
	sk.blockTill(signal.OKToSend|signal.ErrorSignal, false, func() {
		sk.connecting = false
		if sk.state&signal.ErrorSignal != 0 {
			sk.reset()
			cont.Failure()
			return
		}
		cont.Success(0)
	})
}

// Accept puts sk's session into LISTEN and parks cont until a peer
// completes a handshake, spec.md §4.5's accept()/accept1/accept2.
//
// If makeNew is true, the established connection is handed off to a
// freshly allocated descriptor (returned as the success retval, via
// newSocket): the new descriptor shares sk's session and takes over the
// tcp master's wakeups for that port. sk is not given a fresh listening
// session, so it does not accept a further peer. Callers that pass false
// keep driving the single connection on sk itself (tcp.Master retires a
// listening port's session on its first accepted connection either way
// — see DESIGN.md).
func (m *Master) Accept(sk *Socket, makeNew bool, newSocket *int, cont Continuation) {
	if err := m.bound(sk); err != nil {
		cont.Failure()
		return
	}
	if err := sk.session.Listen(); err != nil {
		cont.Failure()
		return
	}
	sk.blockTill(signal.AcceptReady|signal.ErrorSignal, false, func() {
		if sk.state&signal.ErrorSignal != 0 {
			sk.reset()
			cont.Failure()
			return
		}
		sk.blockTill(signal.OKToSend|signal.ErrorSignal, false, func() {
			if sk.state&signal.ErrorSignal != 0 {
				sk.reset()
				cont.Failure()
				return
			}
			if makeNew {
				nsk := m.NewSocket()
				nsk.proto = sk.proto
				nsk.session = sk.session
				nsk.state = sk.state
				m.rebindNotifier(nsk)
				if newSocket != nil {
					*newSocket = nsk.ID
				}
				cont.Success(nsk.ID)
				return
			}
			cont.Success(sk.ID)
		})
	})
}

// rebindNotifier repoints a tcp session's wakeups at nsk, used after
// Accept's make_new_socket hand-off so later Send/Recv/Close on the
// established connection wake the new descriptor, not the original
// listening one.
func (m *Master) rebindNotifier(nsk *Socket) {
	if sess, ok := nsk.session.(*tcp.Session); ok {
		if proto, ok := m.graph.SessionByName("tcp"); ok {
			if master, ok := proto.(*tcp.Master); ok {
				master.SetNotifier(sess.LocalPort(), nsk)
			}
		}
	}
}

// Send parks cont until the session has room to accept data, then
// writes it, spec.md §4.5's send()/send1().
func (m *Master) Send(sk *Socket, data message.DataChunk, cont Continuation) {
	if err := m.bound(sk); err != nil {
		cont.Failure()
		return
	}
	sk.blockTill(signal.OKToSend|signal.ErrorSignal, false, func() {
		if sk.state&signal.ErrorSignal != 0 {
			sk.reset()
			cont.Failure()
			return
		}
		n, err := sk.session.Send(data)
		if err != nil {
			cont.Failure()
			return
		}
		cont.Success(n)
	})
}

// Recv parks cont until data is available or the peer has closed, then
// consumes up to maxLen bytes, spec.md §4.5's recv()/recv1(). A success
// retval of 0 with no error means the peer performed an orderly close.
func (m *Master) Recv(sk *Socket, maxLen int, cont Continuation) {
	if err := m.bound(sk); err != nil {
		cont.Failure()
		return
	}
	sk.blockTill(signal.DataAvailable|signal.Closed|signal.ErrorSignal, false, func() {
		if sk.state&signal.ErrorSignal != 0 {
			sk.reset()
			cont.Failure()
			return
		}
		chunk := sk.session.Recv(maxLen)
		cont.Success(chunk.RealLength)
	})
}

// Close tears sk's session down and, once it settles, frees the
// descriptor, spec.md §4.5's close()/close1(). UDP has no teardown
// handshake to wait on, so its Disconnect is purely local bookkeeping
// and the descriptor is freed immediately.
func (m *Master) Close(sk *Socket, cont Continuation) {
	if err := m.bound(sk); err != nil {
		cont.Failure()
		return
	}
	if err := sk.session.Disconnect(); err != nil {
		cont.Failure()
		return
	}
	if sk.proto == "udp" {
		delete(m.sockets, sk.ID)
		cont.Success(0)
		return
	}
	sk.blockTill(signal.Closed, false, func() {
		delete(m.sockets, sk.ID)
		cont.Success(0)
	})
}
