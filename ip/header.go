// Package ip implements the network layer: IPv4-like header handling,
// TTL enforcement, forwarding via fib, and demultiplexing to TCP/UDP
// masters by protocol number (spec.md §4.3's consumer, §6's IP boundary).
package ip

import (
	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/message"
)

// Header is the simulated IPv4 header prepended to every message pushed
// down by a transport session. Only the fields the simulation's control
// flow depends on are modeled; there is no options/fragmentation support
// (spec.md's Non-goals exclude a byte-accurate wire format).
type Header struct {
	SrcIP    addr.IPAddr
	DstIP    addr.IPAddr
	TTL      uint8
	Protocol int
}

// HeaderBytes returns the fixed 20-byte IPv4 header length (no options).
func (h *Header) HeaderBytes() int { return 20 }

// WireKind tags this header for gopacket-based wire accounting.
func (h *Header) WireKind() message.WireHeaderKind { return message.WireKindIPv4 }

// CloneHeader returns a deep (here, trivially value) copy, satisfying
// [message.CloneableHeader].
func (h *Header) CloneHeader() message.Header {
	cp := *h
	return &cp
}

// PushOptions is supplied by a transport master when pushing a message
// down into IP (spec.md §6's "IP→MAC→PHY" boundary is the next hop down;
// this is the boundary one layer up, symmetric in shape).
type PushOptions struct {
	DstIP    addr.IPAddr
	Protocol int
	TTL      uint8 // 0 means "use the session's configured default"
}

// PopOptions is what IP hands to the demultiplexed transport master when
// delivering a message upward (spec.md §6: "pop-up carries
// IPOptionToAbove { src_ip, dst_ip, ttl }").
type PopOptions struct {
	SrcIP addr.IPAddr
	DstIP addr.IPAddr
	TTL   uint8
}

// ToBelowOptions is what IP hands to the MAC session underneath it on a
// push, per spec.md §6: "push-down of a ProtocolMessage plus an
// IPOptionToBelow { routing_info, is_forward }".
type ToBelowOptions struct {
	RoutingInfo any // the fib.RouteInfo value the packet was routed by
	IsForward   bool
}

// ProtocolNumbers is a small registry of the well-known upper-layer
// protocol numbers the IP session demuxes on, mirroring spec.md §4.3's
// "routed to a session by 5-tuple" after IP-level demux by number.
const (
	ProtocolTCP = 6
	ProtocolUDP = 17
)
