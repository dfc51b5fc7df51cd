package tcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockListInsertCoalescesAdjacent(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(0, 10)
	l.InsertBlock(10, 10)
	require.Equal(t, 1, l.Len())
	blocks := l.FetchBlocks(1)
	require.Equal(t, SackBlock{Left: 0, Right: 20}, blocks[0])
}

func TestBlockListInsertKeepsDisjointSeparate(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(0, 10)
	l.InsertBlock(100, 10)
	require.Equal(t, 2, l.Len())
}

func TestBlockListClearBlocksTrimsAndRemoves(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(0, 10)
	l.InsertBlock(20, 10)
	l.ClearBlocks(5)
	require.Equal(t, 2, l.Len())
	blocks := l.FetchBlocks(2)
	require.Equal(t, uint32(5), blocks[0].Left)

	l.ClearBlocks(15)
	require.Equal(t, 1, l.Len())
}

func TestBlockListRemoveLowest(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(100, 10)
	l.InsertBlock(0, 10)
	length := l.RemoveLowest()
	require.Equal(t, 10, length)
	require.Equal(t, 1, l.Len())
	blocks := l.FetchBlocks(1)
	require.Equal(t, uint32(100), blocks[0].Left)
}

func TestBlockListIsNewFullyDisjoint(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(0, 10)
	seqno, length, ok := l.IsNew(20, 10)
	require.True(t, ok)
	require.Equal(t, uint32(20), seqno)
	require.Equal(t, uint32(10), length)
}

func TestBlockListIsNewFullyCovered(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(0, 10)
	_, _, ok := l.IsNew(2, 5)
	require.False(t, ok)
}

func TestBlockListIsNewPartialOverlapAdjustsRange(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(0, 10)
	seqno, length, ok := l.IsNew(5, 10)
	require.True(t, ok)
	require.Equal(t, uint32(10), seqno)
	require.Equal(t, uint32(5), length)
}

func TestBlockListUnavailableSkipsStoredIntervals(t *testing.T) {
	var l TCPBlockList
	l.InsertBlock(0, 10)
	l.InsertBlock(20, 10)
	require.Equal(t, uint32(10), l.Unavailable(0))
	require.Equal(t, uint32(30), l.Unavailable(20))
}
