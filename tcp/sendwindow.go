package tcp

import "github.com/s3sim/core/message"

// SendWindow extends [SeqWindow] with the outbound byte buffer (spec.md
// §4.4's "TCP send window"): bytes already sent-but-unacked plus bytes
// buffered but not yet sent, a pending-request queue for bytes that
// arrived faster than buffer capacity could absorb, and a capacity.
type SendWindow struct {
	SeqWindow

	buffer   chunkBuffer
	pending  chunkBuffer
	capacity int
}

// NewSendWindow creates a [SendWindow] with the given starting sequence
// number and buffer capacity in bytes.
func NewSendWindow(start uint32, winSize uint32, capacity int) *SendWindow {
	return &SendWindow{
		SeqWindow: SeqWindow{StartSeqno: start, WinSize: winSize},
		capacity:  capacity,
	}
}

// Buffered returns the number of bytes currently held in the buffer
// (sent-unacked plus unsent).
func (w *SendWindow) Buffered() int { return w.buffer.Len() }

// CanSend returns the number of buffered-but-not-yet-sent bytes: bytes
// in the buffer beyond what UsedSize already accounts for as sent.
func (w *SendWindow) CanSend() int {
	unsent := w.buffer.Len() - int(w.UsedSize)
	if unsent < 0 {
		return 0
	}
	return unsent
}

// RequestToSend appends as much of data as the buffer's free capacity
// allows, queuing any remainder as a pending request to be pulled in by
// a future Release (spec.md §4.4: "appends a chunk; tries to fill free
// buffer"). Returns the number of bytes accepted into the buffer.
func (w *SendWindow) RequestToSend(data message.DataChunk) int {
	free := w.capacity - w.buffer.Len()
	if free <= 0 {
		w.pending.Append(data)
		return 0
	}
	take := data.RealLength
	if take > free {
		take = free
	}
	head, tail := data.Split(take)
	w.buffer.Append(head)
	if tail.RealLength > 0 {
		w.pending.Append(tail)
	}
	return take
}

// Generate fabricates a [message.DataMessage] covering [seqno, seqno+len)
// of the buffer, which must already be resident (spec.md §4.4).
func (w *SendWindow) Generate(seqno uint32, length int) *message.DataMessage {
	offset := int(seqno - w.StartSeqno)
	chunk := w.buffer.Extract(offset, length)
	return message.NewDataMessage(chunk)
}

// Release slides the window forward by n newly-acknowledged bytes,
// drops them from the buffer head, and pulls in pending bytes to refill
// freed capacity (spec.md §4.4).
func (w *SendWindow) Release(n uint32) {
	w.Shift(n)
	if n > w.UsedSize {
		w.UsedSize = 0
	} else {
		w.UsedSize -= n
	}
	w.buffer.DropFront(int(n))

	for w.pending.Len() > 0 {
		free := w.capacity - w.buffer.Len()
		if free <= 0 {
			break
		}
		head := w.pending.chunks[0]
		take := head.RealLength
		if take > free {
			take = free
		}
		h, t := head.Split(take)
		w.buffer.Append(h)
		if t.RealLength > 0 {
			w.pending.chunks[0] = t
		} else {
			w.pending.chunks = w.pending.chunks[1:]
		}
		w.pending.total -= take
	}
}
