package tcp

import (
	"testing"

	"github.com/s3sim/core/message"
	"github.com/stretchr/testify/require"
)

func realChunk(s string) message.DataChunk {
	return message.DataChunk{RealLength: len(s), Bytes: []byte(s)}
}

func TestRecvWindowInOrderGenerate(t *testing.T) {
	w := NewRecvWindow(100, 4096)
	w.AddToBuffer(realChunk("hello"), 100)
	require.True(t, w.Available())

	out := w.Generate(10)
	require.Equal(t, "hello", string(out.Bytes))
	require.Equal(t, uint32(105), w.Start())
	require.False(t, w.Available())
}

func TestRecvWindowOutOfOrderBuffersUntilContiguous(t *testing.T) {
	w := NewRecvWindow(100, 4096)
	w.AddToBuffer(realChunk("world"), 105)
	require.False(t, w.Available())

	w.AddToBuffer(realChunk("hello"), 100)
	require.True(t, w.Available())

	out := w.Generate(5)
	require.Equal(t, "hello", string(out.Bytes))
	require.True(t, w.Available())
	out = w.Generate(5)
	require.Equal(t, "world", string(out.Bytes))
}

func TestRecvWindowAdjacentSegmentsMerge(t *testing.T) {
	w := NewRecvWindow(0, 4096)
	w.AddToBuffer(realChunk("AB"), 0)
	w.AddToBuffer(realChunk("CD"), 2)
	require.Len(t, w.segments, 1)
	require.Equal(t, 4, w.segments[0].Chunk.RealLength)
}

func TestRecvWindowDuplicateSegmentDropped(t *testing.T) {
	w := NewRecvWindow(0, 4096)
	w.AddToBuffer(realChunk("AB"), 0)
	w.AddToBuffer(realChunk("AB"), 0)
	require.Len(t, w.segments, 1)
}

func TestRecvWindowPartialGenerateSplitsHeadSegment(t *testing.T) {
	w := NewRecvWindow(0, 4096)
	w.AddToBuffer(realChunk("ABCDEFGH"), 0)
	out := w.Generate(3)
	require.Equal(t, "ABC", string(out.Bytes))
	require.Len(t, w.segments, 1)
	require.Equal(t, uint32(3), w.segments[0].Seqno)
	require.Equal(t, 5, w.segments[0].Chunk.RealLength)
}

func TestRecvWindowHighestSeenTracksFurthestData(t *testing.T) {
	w := NewRecvWindow(0, 4096)
	w.AddToBuffer(realChunk("AB"), 0)
	w.AddToBuffer(realChunk("ZZ"), 50)
	require.Equal(t, uint32(52), w.HighestSeen())
}
