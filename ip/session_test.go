package ip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/fib"
	"github.com/s3sim/core/message"
)

type fakeHeader struct{}

func (fakeHeader) HeaderBytes() int { return 4 }

type recordingSession struct {
	pushed []*message.ProtocolMessage
	popped []*message.ProtocolMessage
	popOpt []entity.PopOption
}

func (r *recordingSession) ProtocolName() string                           { return "fake" }
func (r *recordingSession) ProtocolNumber() int                            { return 0 }
func (r *recordingSession) Config(map[string]any) error                   { return nil }
func (r *recordingSession) Init()                                          {}
func (r *recordingSession) Control(entity.ControlType, any) error          { return nil }
func (r *recordingSession) Push(m *message.ProtocolMessage, _ entity.PushOption) error {
	r.pushed = append(r.pushed, m)
	return nil
}
func (r *recordingSession) Pop(m *message.ProtocolMessage, opt entity.PopOption) error {
	r.popped = append(r.popped, m)
	r.popOpt = append(r.popOpt, opt)
	return nil
}

func TestPushRoutesAndPrependsHeader(t *testing.T) {
	s := NewSession(nil)
	tbl := fib.NewForwardingTable(fib.NewNoneCache())
	tbl.AddRoute(fib.RouteInfo{Destination: addr.IpPrefix{Base: 0, Len: 0}, Nic: 1}, false)
	s.SetRouter(tbl)

	mac := &recordingSession{}
	s.RegisterLower(1, mac, addr.IPAddr(0x0A000001))

	payload := message.New(&fakeHeader{})
	err := s.Push(payload, PushOptions{DstIP: addr.IPAddr(0x0A000002), Protocol: ProtocolTCP, TTL: 10})
	require.NoError(t, err)
	require.Len(t, mac.pushed, 1)

	hdr, ok := mac.pushed[0].Header.(*Header)
	require.True(t, ok)
	require.Equal(t, addr.IPAddr(0x0A000002), hdr.DstIP)
	require.Equal(t, uint8(10), hdr.TTL)
}

func TestPushNoRouteErrors(t *testing.T) {
	s := NewSession(nil)
	tbl := fib.NewForwardingTable(fib.NewNoneCache())
	s.SetRouter(tbl)
	err := s.Push(message.New(&fakeHeader{}), PushOptions{DstIP: addr.IPAddr(1), TTL: 10})
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestPopDeliversLocallyByProtocol(t *testing.T) {
	s := NewSession(nil)
	tcp := &recordingSession{}
	s.AddLocalAddress(addr.IPAddr(5))
	s.RegisterUpper(ProtocolTCP, tcp)

	hdr := &Header{SrcIP: 1, DstIP: 5, TTL: 10, Protocol: ProtocolTCP}
	msg := message.New(hdr)
	msg.Append(message.New(&fakeHeader{}))

	err := s.Pop(msg, nil)
	require.NoError(t, err)
	require.Len(t, tcp.popped, 1)
	popt := tcp.popOpt[0].(PopOptions)
	require.Equal(t, addr.IPAddr(1), popt.SrcIP)
}

func TestPopDropsUnknownProtocol(t *testing.T) {
	s := NewSession(nil)
	s.AddLocalAddress(addr.IPAddr(5))
	hdr := &Header{SrcIP: 1, DstIP: 5, TTL: 10, Protocol: 99}
	msg := message.New(hdr)
	err := s.Pop(msg, nil)
	require.ErrorIs(t, err, ErrNoProtocol)
}

func TestPopForwardsWithDecrementedTTL(t *testing.T) {
	s := NewSession(nil)
	tbl := fib.NewForwardingTable(fib.NewNoneCache())
	tbl.AddRoute(fib.RouteInfo{Destination: addr.IpPrefix{Base: 0, Len: 0}, Nic: 2}, false)
	s.SetRouter(tbl)
	mac := &recordingSession{}
	s.RegisterLower(2, mac, addr.IPAddr(7))

	hdr := &Header{SrcIP: 1, DstIP: 99, TTL: 5, Protocol: ProtocolTCP}
	msg := message.New(hdr)
	err := s.Pop(msg, nil)
	require.NoError(t, err)
	require.Len(t, mac.pushed, 1)
	fwdHdr := mac.pushed[0].Header.(*Header)
	require.Equal(t, uint8(4), fwdHdr.TTL)
}

func TestPopDropsExpiredTTL(t *testing.T) {
	s := NewSession(nil)
	hdr := &Header{SrcIP: 1, DstIP: 99, TTL: 1, Protocol: ProtocolTCP}
	msg := message.New(hdr)
	err := s.Pop(msg, nil)
	require.ErrorIs(t, err, ErrTTLExpired)
}
