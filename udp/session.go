package udp

import (
	"github.com/pkg/errors"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/ip"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/signal"
)

// MaxDatagramSize bounds each fragment's payload, per spec.md §4.6's
// "min(max_datagram_size, remaining)".
const MaxDatagramSize = 1472 // 1500 (typical MTU) - 20 (IP) - 8 (UDP)

// recvChunk is one buffered inbound datagram's payload, tracked with an
// offset so a partial consume (spec.md §4.6's "generate") can resume
// mid-message without copying the remainder out.
type recvChunk struct {
	data   *message.DataMessage
	offset int
}

// Session is a single UDP 4-tuple endpoint (spec.md §4.6).
type Session struct {
	lower  entity.ProtocolSession
	signal signal.Raiser

	srcIP, dstIP     addr.IPAddr
	srcPort, dstPort uint16
	isConnected      bool

	rcvbuf    []recvChunk
	rcvbufLen int
}

// NewSession creates a [Session] bound to the local endpoint and lower
// (IP) session.
func NewSession(lower entity.ProtocolSession, raiser signal.Raiser, srcIP addr.IPAddr, srcPort uint16) *Session {
	if raiser == nil {
		raiser = signal.NullRaiser{}
	}
	return &Session{lower: lower, signal: raiser, srcIP: srcIP, srcPort: srcPort, dstIP: addr.ANYDEST}
}

// Connect pins the session's peer, per spec.md §4.6.
func (s *Session) Connect(ip addr.IPAddr, port uint16) {
	s.dstIP, s.dstPort = ip, port
	s.isConnected = true
	s.signal.Raise(signal.OKToSend)
}

// Send fragments data into MaxDatagramSize chunks, wraps each in a
// UDPMessage, and pushes it down to IP, per spec.md §4.6.
func (s *Session) Send(data message.DataChunk) (int, error) {
	if !s.isConnected {
		return 0, errors.New("udp: send on unconnected session")
	}
	sent := 0
	remaining := data
	for remaining.RealLength > 0 {
		chunkLen := remaining.RealLength
		if chunkLen > MaxDatagramSize {
			chunkLen = MaxDatagramSize
		}
		head, tail := remaining.Split(chunkLen)
		if err := s.pushDatagram(head); err != nil {
			return sent, err
		}
		sent += chunkLen
		remaining = tail
	}
	s.signal.Raise(signal.OKToSend)
	return sent, nil
}

func (s *Session) pushDatagram(chunk message.DataChunk) error {
	dm := message.NewDataMessage(chunk)
	hdr := &Header{SrcPort: s.srcPort, DstPort: s.dstPort}
	chain := message.New(hdr)
	chain.Append(message.New(dm))
	return s.lower.Push(chain, ip.PushOptions{DstIP: s.dstIP, Protocol: ip.ProtocolUDP})
}

// Recv consumes up to maxLen bytes from the receive buffer, per spec.md
// §4.6's generate(len, buf), and returns them as one DataChunk; a
// RealLength of 0 means no data is currently available (the caller
// should block/poll, not that the peer closed — UDP has no close signal).
func (s *Session) Recv(maxLen int) message.DataChunk {
	out := s.generate(maxLen)
	if s.rcvbufLen == 0 {
		// DATA_AVAILABLE is left to the caller to clear on its own poll
		// path, matching spec.md §4.5's "clears DATA_AVAILABLE to force
		// re-arming."
	}
	return out
}

// generate sequentially consumes buffered datagrams, advancing the head
// chunk's offset on a partial consume (spec.md §4.6).
func (s *Session) generate(maxLen int) message.DataChunk {
	collected := 0
	var out []byte
	fake := false
	for maxLen > 0 && len(s.rcvbuf) > 0 {
		head := &s.rcvbuf[0]
		avail := head.data.TotalRealBytes() - head.offset
		if head.data.HasRealBytes() {
			take := avail
			if take > maxLen {
				take = maxLen
			}
			buf := make([]byte, head.data.TotalRealBytes())
			head.data.CopyTo(buf)
			out = append(out, buf[head.offset:head.offset+take]...)
		} else {
			fake = true
			take := avail
			if take > maxLen {
				take = maxLen
			}
			avail = take
		}
		take := avail
		if take > maxLen {
			take = maxLen
		}
		head.offset += take
		collected += take
		maxLen -= take
		s.rcvbufLen -= take
		if head.offset >= head.data.TotalRealBytes() {
			s.rcvbuf = s.rcvbuf[1:]
		}
	}
	if fake && len(out) == 0 {
		return message.DataChunk{RealLength: collected}
	}
	return message.DataChunk{RealLength: collected, Bytes: out}
}

// deliver appends an inbound datagram to the receive buffer and signals
// DATA_AVAILABLE.
func (s *Session) deliver(dm *message.DataMessage) {
	s.rcvbuf = append(s.rcvbuf, recvChunk{data: dm})
	s.rcvbufLen += dm.TotalRealBytes()
	s.signal.Raise(signal.DataAvailable)
}

// Matches reports whether this session is the demux target for an
// inbound datagram from (srcIP, srcPort) to (dstIP, dstPort) — full
// match for a connected session, or a port-only match for a session
// still bound to ANYDEST (spec.md §4.6's adopt-on-arrival rule).
func (s *Session) Matches(srcIP addr.IPAddr, srcPort uint16, dstPort uint16) (exact bool, adoptable bool) {
	if s.srcPort != dstPort {
		return false, false
	}
	if s.isConnected && s.dstIP == srcIP && s.dstPort == srcPort {
		return true, false
	}
	if s.dstIP == addr.ANYDEST {
		return false, true
	}
	return false, false
}

// Adopt pins an ANYDEST session's peer to the sender of the datagram
// that triggered the adoption (spec.md §4.6).
func (s *Session) Adopt(srcIP addr.IPAddr, srcPort uint16) {
	s.dstIP, s.dstPort = srcIP, srcPort
	s.isConnected = true
}
