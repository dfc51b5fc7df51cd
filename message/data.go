package message

// DataChunk describes a run of real length may real-or-fake bytes: real
// bytes exist when the simulated workload requires content; fake bytes
// count toward lengths and times but carry no data.
type DataChunk struct {
	// RealLength is the number of bytes this chunk represents.
	RealLength int

	// Bytes holds real data when non-nil; its length equals RealLength.
	// When nil, the chunk is entirely fake: it counts toward lengths and
	// timing but there is nothing to copy.
	Bytes []byte
}

// IsFake reports whether the chunk carries no real bytes.
func (c DataChunk) IsFake() bool {
	return c.Bytes == nil
}

// Split divides c into a chunk of length n (the head) and a chunk of the
// remaining bytes (the tail). n must be in [0, c.RealLength].
func (c DataChunk) Split(n int) (head, tail DataChunk) {
	if c.Bytes == nil {
		return DataChunk{RealLength: n}, DataChunk{RealLength: c.RealLength - n}
	}
	return DataChunk{RealLength: n, Bytes: c.Bytes[:n]},
		DataChunk{RealLength: c.RealLength - n, Bytes: c.Bytes[n:]}
}

// DataMessage is the data-carrying payload at the tail of a
// [ProtocolMessage] chain: either a contiguous byte buffer with a real
// length, or a list of [DataChunk]s.
type DataMessage struct {
	// Chunks holds the ordered list of data chunks making up this message.
	Chunks []DataChunk

	// PackingSize is used only for hypothetical on-the-wire serialization
	// accounting (spec.md §3); it never drives scheduling or delivery.
	PackingSize int
}

// NewDataMessage builds a DataMessage from a single chunk.
func NewDataMessage(chunk DataChunk) *DataMessage {
	return &DataMessage{Chunks: []DataChunk{chunk}}
}

// HeaderBytes implements Header: a data message contributes no header
// bytes of its own, only payload bytes (accounted for via TotalRealBytes).
func (d *DataMessage) HeaderBytes() int { return 0 }

// TotalRealBytes sums RealLength across every chunk in the message.
func (d *DataMessage) TotalRealBytes() int {
	total := 0
	for _, c := range d.Chunks {
		total += c.RealLength
	}
	return total
}

// HasRealBytes reports whether any chunk carries real data.
func (d *DataMessage) HasRealBytes() bool {
	for _, c := range d.Chunks {
		if !c.IsFake() {
			return true
		}
	}
	return false
}

// CopyTo copies up to len(buf) real bytes from d into buf, starting at
// byte offset 0 of the message, and returns the number of bytes copied.
// Fake chunks are skipped: they are not copied and take up no room in
// buf, so when d mixes real and fake chunks the bytes in buf do not line
// up with the message's byte offsets. For the length of a message with
// no real bytes at all, use TotalRealBytes.
func (d *DataMessage) CopyTo(buf []byte) int {
	n := 0
	for _, c := range d.Chunks {
		if n >= len(buf) {
			break
		}
		if c.Bytes == nil {
			continue
		}
		copied := copy(buf[n:], c.Bytes)
		n += copied
	}
	return n
}

var _ Header = &DataMessage{}
