package tcp

// SeqWindow is the sliding-window sequence-number bookkeeping shared by
// send and receive windows (spec.md §4.4's "Sliding-window state").
type SeqWindow struct {
	StartSeqno uint32
	WinSize    uint32
	UsedSize   uint32
	SynIncl    bool
	FinIncl    bool
}

// Start returns the window's starting sequence number.
func (w *SeqWindow) Start() uint32 { return w.StartSeqno }

// synfinUsed returns the number of sequence-number slots the control
// bits occupy: one for SYN if SynIncl is set, plus one for FIN if
// FinIncl is set (0, 1 or 2).
func (w *SeqWindow) synfinUsed() uint32 {
	n := uint32(0)
	if w.SynIncl {
		n++
	}
	if w.FinIncl {
		n++
	}
	return n
}

// FirstUnused returns start + used (the next byte offset not yet
// claimed by data, independent of SYN/FIN accounting).
func (w *SeqWindow) FirstUnused() uint32 { return w.StartSeqno + w.UsedSize }

// Next returns start + used + syn? + fin?: the sequence number the next
// fresh byte (or control bit) would consume.
func (w *SeqWindow) Next() uint32 { return w.StartSeqno + w.UsedSize + w.synfinUsed() }

// Expect returns start + syn? + fin?: the sequence number expected for
// the next byte after any control bits already accounted at the window
// start (used by the receive side to know what byte is "expected").
func (w *SeqWindow) Expect() uint32 { return w.StartSeqno + w.synfinUsed() }

// Shift slides the window's start forward by n without changing used
// size semantics (callers adjust UsedSize themselves; Shift alone moves
// the origin, used by release()).
func (w *SeqWindow) Shift(n uint32) { w.StartSeqno += n }

// Expand grows the window size by n.
func (w *SeqWindow) Expand(n uint32) { w.WinSize += n }

// Shrink reduces the window size by n, floored at 0.
func (w *SeqWindow) Shrink(n uint32) {
	if n > w.WinSize {
		w.WinSize = 0
		return
	}
	w.WinSize -= n
}

// Use claims n bytes of window capacity if available, returning whether
// the claim succeeded.
func (w *SeqWindow) Use(n uint32) bool {
	if w.UsedSize+n > w.WinSize {
		return false
	}
	w.UsedSize += n
	return true
}

// Within is the half-open membership test: start <= seqno < next().
func (w *SeqWindow) Within(seqno uint32) bool {
	return seqno >= w.StartSeqno && seqno < w.Next()
}
