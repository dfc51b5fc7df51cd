// Package udp implements connectionless datagram delivery (spec.md
// §4.6): the UDP master demuxes inbound datagrams by 4-tuple to a
// session, adopting ANYDEST-bound sessions on first arrival; each
// session fragments outbound sends into datagram-sized DataMessages.
package udp

import "github.com/s3sim/core/message"

// Header is the simulated UDP header.
type Header struct {
	SrcPort uint16
	DstPort uint16
}

// HeaderBytes returns the fixed 8-byte UDP header length.
func (h *Header) HeaderBytes() int { return 8 }

// WireKind tags this header for gopacket-based wire accounting.
func (h *Header) WireKind() message.WireHeaderKind { return message.WireKindUDP }

// CloneHeader returns a value copy.
func (h *Header) CloneHeader() message.Header {
	cp := *h
	return &cp
}
