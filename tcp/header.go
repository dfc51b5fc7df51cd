// Package tcp implements the TCP session state machine, congestion
// control (Tahoe/Reno/NewReno/SACK), and RTT/RTO estimation of spec.md
// §4.4 — the hardest and highest-weighted subsystem this module
// implements in full.
package tcp

import "github.com/s3sim/core/message"

// Flags is a bitmask of TCP control flags.
type Flags uint8

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagRST
	FlagACK
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// SackBlock is one [left, right) range advertised in a SACK option.
type SackBlock struct {
	Left, Right uint32
}

// Header is the simulated TCP header (spec.md §4.4.3's TCPMessage).
type Header struct {
	SrcPort, DstPort uint16
	Seqno, Ackno     uint32
	Flags            Flags
	Wsize            uint32 // advertised receive window, in bytes

	SackPermitted bool
	SackBlocks    []SackBlock
}

// HeaderBytes returns 20 bytes fixed plus any SACK option bytes: 2 for
// SACK_PERMITTED, or 2+8N for N SACK blocks (spec.md §4.4.6).
func (h *Header) HeaderBytes() int {
	n := 20
	if h.SackPermitted {
		n += 2
	}
	if len(h.SackBlocks) > 0 {
		n += 2 + 8*len(h.SackBlocks)
	}
	return n
}

// WireKind tags this header for gopacket-based wire accounting.
func (h *Header) WireKind() message.WireHeaderKind { return message.WireKindTCP }

// CloneHeader deep-copies the header, including its SACK block slice.
func (h *Header) CloneHeader() message.Header {
	cp := *h
	cp.SackBlocks = append([]SackBlock(nil), h.SackBlocks...)
	return &cp
}
