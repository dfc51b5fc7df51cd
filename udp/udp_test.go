package udp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/ip"
	"github.com/s3sim/core/message"
)

type fakeLower struct {
	pushed []*message.ProtocolMessage
	opts   []entity.PushOption
}

func (f *fakeLower) ProtocolName() string                  { return "fake-ip" }
func (f *fakeLower) ProtocolNumber() int                    { return 0 }
func (f *fakeLower) Config(map[string]any) error           { return nil }
func (f *fakeLower) Init()                                  {}
func (f *fakeLower) Control(entity.ControlType, any) error  { return nil }
func (f *fakeLower) Pop(*message.ProtocolMessage, entity.PopOption) error { return nil }
func (f *fakeLower) Push(m *message.ProtocolMessage, opt entity.PushOption) error {
	f.pushed = append(f.pushed, m)
	f.opts = append(f.opts, opt)
	return nil
}

func TestSendFragmentsIntoDatagrams(t *testing.T) {
	lower := &fakeLower{}
	s := NewSession(lower, nil, addr.IPAddr(1), 1000)
	s.Connect(addr.IPAddr(2), 2000)

	data := message.DataChunk{RealLength: MaxDatagramSize + 100}
	n, err := s.Send(data)
	require.NoError(t, err)
	require.Equal(t, MaxDatagramSize+100, n)
	require.Len(t, lower.pushed, 2)

	opt0 := lower.opts[0].(ip.PushOptions)
	require.Equal(t, addr.IPAddr(2), opt0.DstIP)
	require.Equal(t, ip.ProtocolUDP, opt0.Protocol)
}

func TestSendRequiresConnection(t *testing.T) {
	s := NewSession(&fakeLower{}, nil, addr.IPAddr(1), 1000)
	_, err := s.Send(message.DataChunk{RealLength: 10})
	require.Error(t, err)
}

func TestMasterDemuxAdoptsAnydest(t *testing.T) {
	lower := &fakeLower{}
	m := NewMaster()
	m.SetLower(lower)
	m.SetLocalIP(addr.IPAddr(5))

	sess := m.NewSession(53, nil)

	hdr := &Header{SrcPort: 9999, DstPort: 53}
	msg := message.New(hdr)
	msg.Append(message.New(message.NewDataMessage(message.DataChunk{RealLength: 10})))

	err := m.Pop(msg, ip.PopOptions{SrcIP: addr.IPAddr(77), DstIP: addr.IPAddr(5), TTL: 64})
	require.NoError(t, err)

	out := sess.Recv(10)
	require.Equal(t, 10, out.RealLength)

	exact, _ := sess.Matches(addr.IPAddr(77), 9999, 53)
	require.True(t, exact, "session should have adopted the peer on first arrival")
}

func TestMasterDropsUnmatchedDatagram(t *testing.T) {
	m := NewMaster()
	m.SetLower(&fakeLower{})
	hdr := &Header{SrcPort: 1, DstPort: 9}
	msg := message.New(hdr)
	msg.Append(message.New(message.NewDataMessage(message.DataChunk{RealLength: 5})))
	err := m.Pop(msg, ip.PopOptions{SrcIP: 1, DstIP: 2})
	require.NoError(t, err)
}
