package tcp

import (
	"sort"

	"github.com/s3sim/core/message"
)

// recvSegment is one received, possibly out-of-order, byte range.
type recvSegment struct {
	Seqno uint32
	Chunk message.DataChunk
}

func (s recvSegment) end() uint32 { return s.Seqno + uint32(s.Chunk.RealLength) }

func sameKind(a, b message.DataChunk) bool { return a.IsFake() == b.IsFake() }

func mergeChunks(a, b message.DataChunk) message.DataChunk {
	if a.IsFake() && b.IsFake() {
		return message.DataChunk{RealLength: a.RealLength + b.RealLength}
	}
	out := make([]byte, 0, a.RealLength+b.RealLength)
	if a.IsFake() {
		out = append(out, make([]byte, a.RealLength)...)
	} else {
		out = append(out, a.Bytes...)
	}
	if b.IsFake() {
		out = append(out, make([]byte, b.RealLength)...)
	} else {
		out = append(out, b.Bytes...)
	}
	return message.DataChunk{RealLength: a.RealLength + b.RealLength, Bytes: out}
}

// RecvWindow extends [SeqWindow] with a sorted list of received
// out-of-order segments (spec.md §4.4's "TCP receive window").
type RecvWindow struct {
	SeqWindow

	segments    []recvSegment
	highestSeen uint32
}

// NewRecvWindow creates a [RecvWindow] starting at seqno, advertising
// winSize bytes.
func NewRecvWindow(start uint32, winSize uint32) *RecvWindow {
	return &RecvWindow{SeqWindow: SeqWindow{StartSeqno: start, WinSize: winSize}}
}

// HighestSeen returns the highest sequence number observed across any
// segment ever added.
func (w *RecvWindow) HighestSeen() uint32 { return w.highestSeen }

// AddSegment flattens a received [message.DataMessage] (possibly
// multiple chunks) into one segment and inserts it via AddToBuffer.
func (w *RecvWindow) AddSegment(dm *message.DataMessage, seqno uint32) {
	if len(dm.Chunks) == 0 {
		return
	}
	chunk := dm.Chunks[0]
	for _, c := range dm.Chunks[1:] {
		chunk = mergeChunks(chunk, c)
	}
	w.AddToBuffer(chunk, seqno)
}

// AddToBuffer inserts a received segment, coalescing it with an
// adjacent same-kind (fake/real) neighbor, and dropping it if it is
// already fully covered by an existing segment (spec.md §4.4: "packets
// either perfectly overlap an existing segment or are disjoint").
func (w *RecvWindow) AddToBuffer(chunk message.DataChunk, seqno uint32) {
	if end := seqno + uint32(chunk.RealLength); end > w.highestSeen {
		w.highestSeen = end
	}
	if seqno < w.StartSeqno {
		// Entirely old data (already delivered/consumed); drop.
		return
	}

	i := sort.Search(len(w.segments), func(i int) bool { return w.segments[i].Seqno >= seqno })

	if i > 0 {
		prev := w.segments[i-1]
		if seqno < prev.end() {
			return // covered by (or overlapping the start of) a prior segment
		}
		if prev.end() == seqno && sameKind(prev.Chunk, chunk) {
			w.segments[i-1].Chunk = mergeChunks(prev.Chunk, chunk)
			w.coalesceForward(i - 1)
			return
		}
	}
	if i < len(w.segments) {
		next := w.segments[i]
		end := seqno + uint32(chunk.RealLength)
		if end == next.Seqno && sameKind(chunk, next.Chunk) {
			w.segments[i] = recvSegment{Seqno: seqno, Chunk: mergeChunks(chunk, next.Chunk)}
			return
		}
		if end > next.Seqno {
			return // overlaps an existing segment; treat as duplicate
		}
	}

	w.segments = append(w.segments, recvSegment{})
	copy(w.segments[i+1:], w.segments[i:])
	w.segments[i] = recvSegment{Seqno: seqno, Chunk: chunk}
}

// coalesceForward merges segment i with i+1 if they are now adjacent
// and same-kind, after a merge may have extended segment i's end.
func (w *RecvWindow) coalesceForward(i int) {
	if i+1 >= len(w.segments) {
		return
	}
	cur := w.segments[i]
	next := w.segments[i+1]
	if cur.end() == next.Seqno && sameKind(cur.Chunk, next.Chunk) {
		w.segments[i].Chunk = mergeChunks(cur.Chunk, next.Chunk)
		w.segments = append(w.segments[:i+1], w.segments[i+2:]...)
	}
}

// Buffered returns the total bytes currently held across all segments,
// in-order or not.
func (w *RecvWindow) Buffered() int {
	total := 0
	for _, s := range w.segments {
		total += s.Chunk.RealLength
	}
	return total
}

// Available reports whether contiguous data starting at Expect() is
// present (spec.md §4.4).
func (w *RecvWindow) Available() bool {
	return len(w.segments) > 0 && w.segments[0].Seqno == w.Expect()
}

// Generate copies up to length bytes starting at Expect() from the head
// segment only, advancing the window's start (spec.md §4.4); a following
// segment is not read in the same call even if it is contiguous.
func (w *RecvWindow) Generate(length int) message.DataChunk {
	if !w.Available() {
		return message.DataChunk{}
	}
	head := w.segments[0]
	take := head.Chunk.RealLength
	if take > length {
		take = length
	}
	out, tail := head.Chunk.Split(take)
	w.Shift(uint32(take))
	w.Expand(uint32(take))
	if tail.RealLength > 0 {
		w.segments[0] = recvSegment{Seqno: head.Seqno + uint32(take), Chunk: tail}
	} else {
		w.segments = w.segments[1:]
	}
	return out
}
