package socket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/ip"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/tcp"
	"github.com/s3sim/core/udp"
)

// fakeLower is an entity.ProtocolSession stand-in for IP, recording
// every segment/datagram pushed down to it without actually
// transmitting it.
type fakeLower struct {
	pushed []*message.ProtocolMessage
}

func (l *fakeLower) ProtocolName() string                           { return "ip" }
func (l *fakeLower) ProtocolNumber() int                             { return ip.ProtocolTCP }
func (l *fakeLower) Config(map[string]any) error                     { return nil }
func (l *fakeLower) Init()                                           {}
func (l *fakeLower) Control(entity.ControlType, any) error           { return nil }
func (l *fakeLower) Pop(*message.ProtocolMessage, entity.PopOption) error { return nil }

func (l *fakeLower) Push(msg *message.ProtocolMessage, opt entity.PushOption) error {
	l.pushed = append(l.pushed, msg)
	return nil
}

func newTestGraph(t *testing.T) (*entity.ProtocolGraph, *tcp.Master, *udp.Master, *fakeLower) {
	t.Helper()
	g := entity.NewProtocolGraph()
	lower := &fakeLower{}

	tm := tcp.NewMaster()
	require.NoError(t, tm.Config(nil))
	tm.SetLower(lower)
	tm.SetLocalIP(addr.IPAddr(0x01010101))
	require.NoError(t, g.Add(tm))

	um := udp.NewMaster()
	um.SetLower(lower)
	um.SetLocalIP(addr.IPAddr(0x01010101))
	require.NoError(t, g.Add(um))

	return g, tm, um, lower
}

func TestBindAllocatesTCPSession(t *testing.T) {
	g, _, _, _ := newTestGraph(t)
	m := NewMaster(g)
	sk := m.NewSocket()
	require.NoError(t, m.Bind(sk, 0, "tcp"))
	require.NotNil(t, sk.session)
	require.Error(t, m.Bind(sk, 0, "tcp")) // already bound
}

func TestBindUnknownProtocolFails(t *testing.T) {
	g, _, _, _ := newTestGraph(t)
	m := NewMaster(g)
	sk := m.NewSocket()
	require.Error(t, m.Bind(sk, 0, "sctp"))
}

func TestConnectSucceedsOnceHandshakeCompletes(t *testing.T) {
	g, _, _, lower := newTestGraph(t)
	m := NewMaster(g)
	sk := m.NewSocket()
	require.NoError(t, m.Bind(sk, 0, "tcp"))

	var succeeded bool
	var failed bool
	m.Connect(sk, addr.IPAddr(0x02020202), 80, Continuation{
		Success: func(int) { succeeded = true },
		Failure: func() { failed = true },
	})
	require.False(t, succeeded)
	require.False(t, failed)
	require.True(t, sk.IsActive())

	sess := sk.session.(*tcp.Session)
	clientSyn := lower.pushed[len(lower.pushed)-1].Header.(*tcp.Header)
	synAck := &tcp.Header{
		SrcPort: 80, DstPort: sess.LocalPort(),
		Seqno: 5000, Ackno: clientSyn.Seqno + 1,
		Flags: tcp.FlagSYN | tcp.FlagACK, Wsize: 8000,
	}
	require.NoError(t, sess.Receive(synAck, nil))

	require.True(t, succeeded)
	require.False(t, failed)
	require.False(t, sk.IsActive())
}

func TestSendFailsWhenNotBound(t *testing.T) {
	g, _, _, _ := newTestGraph(t)
	m := NewMaster(g)
	sk := m.NewSocket()
	var failed bool
	m.Send(sk, message.DataChunk{RealLength: 10}, Continuation{
		Success: func(int) {},
		Failure: func() { failed = true },
	})
	require.True(t, failed)
}

func TestTrySendReturnsWouldBlockBeforeConnected(t *testing.T) {
	g, _, _, _ := newTestGraph(t)
	m := NewMaster(g)
	sk := m.NewSocket()
	require.NoError(t, m.Bind(sk, 0, "tcp"))

	status, n, err := m.TrySend(sk, message.DataChunk{RealLength: 10})
	require.NoError(t, err)
	require.Equal(t, EWOULDBLOCK, status)
	require.Equal(t, 0, n)
}

func TestUDPSocketSendsImmediatelyOnceConnected(t *testing.T) {
	g, _, _, _ := newTestGraph(t)
	m := NewMaster(g)
	sk := m.NewSocket()
	require.NoError(t, m.Bind(sk, 6000, "udp"))

	status, err := m.TryConnect(sk, addr.IPAddr(0x02020202), 7000)
	require.NoError(t, err)
	require.Equal(t, ECONNECTED, status)

	sendStatus, n, err := m.TrySend(sk, message.DataChunk{RealLength: 100})
	require.NoError(t, err)
	require.Equal(t, ESUCCESS, sendStatus)
	require.Equal(t, 100, n)
}

func TestCloseFreesDescriptorOnceSessionSettles(t *testing.T) {
	g, _, _, _ := newTestGraph(t)
	m := NewMaster(g)
	sk := m.NewSocket()
	require.NoError(t, m.Bind(sk, 6001, "udp"))

	var succeeded bool
	m.Close(sk, Continuation{
		Success: func(int) { succeeded = true },
		Failure: func() { t.Fatal("close should not fail") },
	})
	require.True(t, succeeded)
	_, stillThere := m.sockets[sk.ID]
	require.False(t, stillThere)
}
