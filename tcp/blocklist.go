package tcp

import "sort"

// TCPBlockList is the SACK scoreboard of spec.md §4.4.6: a set of
// coalesced, non-overlapping [left, right) sequence-number intervals.
// The sender keeps one to track which sequence ranges the peer has
// already SACKed; the receiver keeps one to track which ranges it has
// already buffered out of order.
type TCPBlockList struct {
	blocks []SackBlock
}

func (l *TCPBlockList) Len() int { return len(l.blocks) }

// InsertBlock adds [seqno, seqno+length) to the represented set,
// coalescing it with any block it overlaps or touches (spec.md §4.4.6:
// "coalesce head with any overlapping/adjacent block in the list; at
// most two passes suffice").
func (l *TCPBlockList) InsertBlock(seqno, length uint32) {
	if length == 0 {
		return
	}
	left, right := seqno, seqno+length
	kept := l.blocks[:0]
	for _, b := range l.blocks {
		if b.Right < left || b.Left > right {
			kept = append(kept, b)
			continue
		}
		if b.Left < left {
			left = b.Left
		}
		if b.Right > right {
			right = b.Right
		}
	}
	l.blocks = append(kept, SackBlock{Left: left, Right: right})
	sort.Slice(l.blocks, func(i, j int) bool { return l.blocks[i].Left < l.blocks[j].Left })
}

// ClearBlocks removes intervals fully at or below seqno, and trims any
// interval straddling seqno so it starts at seqno (spec.md §4.4.6).
func (l *TCPBlockList) ClearBlocks(seqno uint32) {
	kept := l.blocks[:0]
	for _, b := range l.blocks {
		if b.Right <= seqno {
			continue
		}
		if b.Left < seqno {
			b.Left = seqno
		}
		kept = append(kept, b)
	}
	l.blocks = kept
}

// FetchBlocks returns up to n intervals (spec.md §4.4.6: used to fill a
// SACK option with at most 4 blocks).
func (l *TCPBlockList) FetchBlocks(n int) []SackBlock {
	if n > len(l.blocks) {
		n = len(l.blocks)
	}
	out := make([]SackBlock, n)
	copy(out, l.blocks[:n])
	return out
}

// RemoveLowest strips and returns the length of the minimum-seqno
// interval.
func (l *TCPBlockList) RemoveLowest() int {
	if len(l.blocks) == 0 {
		return 0
	}
	lowest := l.blocks[0]
	l.blocks = l.blocks[1:]
	return int(lowest.Right - lowest.Left)
}

// IsNew classifies [seqno, seqno+length) against the represented set.
// If strictly new (no overlap with any stored interval), it returns the
// range unchanged with ok=true. If it partially overlaps, it returns the
// first maximal residual sub-interval with ok=true. If fully covered, it
// returns ok=false (spec.md §4.4.6 / invariant 4).
func (l *TCPBlockList) IsNew(seqno, length uint32) (newSeqno, newLength uint32, ok bool) {
	right := seqno + length
	for _, b := range l.blocks {
		if b.Right <= seqno || b.Left >= right {
			continue
		}
		// Overlaps. If b covers the left edge, advance seqno past it.
		if b.Left <= seqno && b.Right < right {
			seqno = b.Right
			continue
		}
		if b.Left <= seqno && b.Right >= right {
			return 0, 0, false // fully covered
		}
		// b starts inside [seqno, right): residual is [seqno, b.Left).
		right = b.Left
		break
	}
	if seqno >= right {
		return 0, 0, false
	}
	return seqno, right - seqno, true
}

// Unavailable returns the first seqno >= startno not present in any
// stored interval (spec.md §4.4.6; list assumed sorted increasing).
func (l *TCPBlockList) Unavailable(startno uint32) uint32 {
	for _, b := range l.blocks {
		if startno < b.Left {
			return startno
		}
		if startno < b.Right {
			startno = b.Right
		}
	}
	return startno
}
