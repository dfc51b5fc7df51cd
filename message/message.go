// Package message implements the protocol-message payload chain: the
// singly-linked list of layer headers (IP wrapping TCP/UDP wrapping data)
// that flows up and down the protocol stack, plus the ownership-transfer
// rules spec.md §3 mandates.
package message

// Header is implemented by every protocol header that can appear in a
// [ProtocolMessage] chain (IP, TCP, UDP, simple-MAC, simple-PHY, ...).
// Headers know their own serialized length for accounting purposes but
// never serialize themselves to real bytes on the simulation hot path.
type Header interface {
	// HeaderBytes returns the header's length in bytes.
	HeaderBytes() int
}

// ProtocolMessage is the head of a payload chain. Each node owns its
// Payload: appending a payload transfers ownership to the parent (the
// node holding it), dropping the payload returns ownership to the caller,
// and erasing a node alone severs the chain at that point without
// recursing into the payload.
type ProtocolMessage struct {
	Header  Header
	Payload *ProtocolMessage
}

// New wraps a header with no payload.
func New(h Header) *ProtocolMessage {
	return &ProtocolMessage{Header: h}
}

// Append transfers ownership of payload to m, replacing any existing
// payload (the caller is assumed to have already detached it, or intends
// to leak it — erase first if that is not the case).
func (m *ProtocolMessage) Append(payload *ProtocolMessage) {
	m.Payload = payload
}

// Drop detaches and returns m's payload, returning ownership to the
// caller. m no longer references it.
func (m *ProtocolMessage) Drop() *ProtocolMessage {
	p := m.Payload
	m.Payload = nil
	return p
}

// Erase severs the chain at m: m's payload link is cleared but the
// detached sub-chain is not recursively destroyed (Go's GC reclaims it
// once nothing else references it; this mirrors the original's
// "erasing a header alone severs the chain" semantics for callers
// that keep their own reference to the sub-chain).
func (m *ProtocolMessage) Erase() {
	m.Payload = nil
}

// EraseAll severs and discards the entire chain starting at m.
func (m *ProtocolMessage) EraseAll() {
	for node := m; node != nil; {
		next := node.Payload
		node.Payload = nil
		node = next
	}
}

// Clone deep-copies the chain starting at m. Headers are copied by value
// through the CloneableHeader interface when implemented; otherwise the
// header reference itself is shared (headers that carry no mutable state
// beyond what's immutable after construction, e.g. protocol numbers).
func (m *ProtocolMessage) Clone() *ProtocolMessage {
	if m == nil {
		return nil
	}
	h := m.Header
	if c, ok := h.(CloneableHeader); ok {
		h = c.CloneHeader()
	}
	return &ProtocolMessage{
		Header:  h,
		Payload: m.Payload.Clone(),
	}
}

// CloneableHeader is implemented by headers that carry mutable per-message
// state (sequence numbers, TTLs, ...) and therefore must be deep-copied
// rather than shared across clones.
type CloneableHeader interface {
	Header
	CloneHeader() Header
}

// Len returns the number of nodes in the chain starting at m.
func (m *ProtocolMessage) Len() int {
	n := 0
	for node := m; node != nil; node = node.Payload {
		n++
	}
	return n
}

// TotalHeaderBytes sums HeaderBytes() across every node in the chain.
func (m *ProtocolMessage) TotalHeaderBytes() int {
	total := 0
	for node := m; node != nil; node = node.Payload {
		total += node.Header.HeaderBytes()
	}
	return total
}

// Tail returns the last node of the chain (the innermost payload).
func (m *ProtocolMessage) Tail() *ProtocolMessage {
	node := m
	for node != nil && node.Payload != nil {
		node = node.Payload
	}
	return node
}
