package tcp

import "github.com/s3sim/core/message"

// chunkBuffer is an ordered deque of [message.DataChunk]s used by both
// the send and receive windows' byte buffers.
type chunkBuffer struct {
	chunks []message.DataChunk
	total  int
}

func (b *chunkBuffer) Len() int { return b.total }

// Append adds chunk to the tail of the buffer.
func (b *chunkBuffer) Append(chunk message.DataChunk) {
	if chunk.RealLength == 0 {
		return
	}
	b.chunks = append(b.chunks, chunk)
	b.total += chunk.RealLength
}

// DropFront removes n bytes from the head of the buffer, splitting the
// first chunk if n falls mid-chunk.
func (b *chunkBuffer) DropFront(n int) {
	for n > 0 && len(b.chunks) > 0 {
		head := b.chunks[0]
		if head.RealLength <= n {
			n -= head.RealLength
			b.total -= head.RealLength
			b.chunks = b.chunks[1:]
			continue
		}
		_, tail := head.Split(n)
		b.total -= n
		b.chunks[0] = tail
		n = 0
	}
}

// Extract returns a single chunk covering [offset, offset+length) of
// the buffer's logical byte stream, without mutating the buffer.
// Spanning multiple underlying chunks with mixed real/fake content
// degrades to treating the whole span as real, zero-filling any fake
// portion in place — a simplification of the original's contiguous
// byte-buffer model.
func (b *chunkBuffer) Extract(offset, length int) message.DataChunk {
	if length == 0 {
		return message.DataChunk{}
	}
	pos := 0
	var collected []byte
	fakeOnly := true
	remaining := length
	skip := offset
	for _, c := range b.chunks {
		if remaining <= 0 {
			break
		}
		chunkEnd := pos + c.RealLength
		if chunkEnd <= skip {
			pos = chunkEnd
			continue
		}
		start := 0
		if skip > pos {
			start = skip - pos
		}
		avail := c.RealLength - start
		take := avail
		if take > remaining {
			take = remaining
		}
		if !c.IsFake() {
			fakeOnly = false
			collected = append(collected, c.Bytes[start:start+take]...)
		} else {
			collected = append(collected, make([]byte, take)...)
		}
		remaining -= take
		pos = chunkEnd
	}
	if fakeOnly {
		return message.DataChunk{RealLength: length}
	}
	if len(collected) < length {
		collected = append(collected, make([]byte, length-len(collected))...)
	}
	return message.DataChunk{RealLength: length, Bytes: collected}
}
