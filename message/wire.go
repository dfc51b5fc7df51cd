package message

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// WireHeaderKind tags the protocol a [Header] represents, purely so
// [PackingSize] can build the matching gopacket layer. Sessions never use
// this tag for dispatch; it exists only for wire-accounting.
type WireHeaderKind int

const (
	// WireKindOpaque is any header PackingSize does not model precisely;
	// its HeaderBytes() is used as-is.
	WireKindOpaque WireHeaderKind = iota
	// WireKindIPv4 tags an IPv4 header.
	WireKindIPv4
	// WireKindTCP tags a TCP header.
	WireKindTCP
	// WireKindUDP tags a UDP header.
	WireKindUDP
)

// WireDescribable is implemented by headers that want [PackingSize] to
// account for them using a real gopacket serialization of an equivalent
// header, rather than just summing HeaderBytes().
type WireDescribable interface {
	Header
	WireKind() WireHeaderKind
}

// PackingSize computes the hypothetical on-the-wire serialized size of the
// chain starting at m, using gopacket to serialize synthetic IPv4/TCP/UDP
// layers that mirror the chain's headers, giving a byte count identical to
// what a real NIC would put on the wire. mac.SimplePhy calls it for every
// pushed packet to obtain the length it hands to the nic queue.
func PackingSize(m *ProtocolMessage) int {
	var layerStack []gopacket.SerializableLayer
	opaque := 0
	dataBytes := 0

	for node := m; node != nil; node = node.Payload {
		if wd, ok := node.Header.(WireDescribable); ok {
			switch wd.WireKind() {
			case WireKindIPv4:
				layerStack = append(layerStack, &layers.IPv4{
					Version:  4,
					IHL:      5,
					TTL:      64,
					Protocol: layers.IPProtocolTCP,
					SrcIP:    net.IPv4(0, 0, 0, 0),
					DstIP:    net.IPv4(0, 0, 0, 0),
				})
				continue
			case WireKindTCP:
				layerStack = append(layerStack, &layers.TCP{DataOffset: 5})
				continue
			case WireKindUDP:
				layerStack = append(layerStack, &layers.UDP{})
				continue
			}
		}
		if dm, ok := node.Header.(*DataMessage); ok {
			dataBytes += dm.TotalRealBytes()
			continue
		}
		opaque += node.Header.HeaderBytes()
	}

	if len(layerStack) == 0 {
		return opaque + dataBytes
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: false}
	payload := gopacket.Payload(make([]byte, dataBytes))
	layerStack = append(layerStack, payload)
	if err := gopacket.SerializeLayers(buf, opts, layerStack...); err != nil {
		// Fall back to the opaque sum: this helper is advisory only.
		return opaque + dataBytes + headerBytesSum(m)
	}
	return opaque + len(buf.Bytes())
}

func headerBytesSum(m *ProtocolMessage) int {
	total := 0
	for node := m; node != nil; node = node.Payload {
		if _, ok := node.Header.(*DataMessage); ok {
			continue
		}
		total += node.Header.HeaderBytes()
	}
	return total
}
