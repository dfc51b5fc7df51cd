package message_test

import (
	"testing"

	"github.com/s3sim/core/message"
	"github.com/stretchr/testify/require"
)

type fixedHeader struct{ n int }

func (h fixedHeader) HeaderBytes() int { return h.n }

func TestChainOwnership(t *testing.T) {
	outer := message.New(fixedHeader{n: 20})
	inner := message.New(fixedHeader{n: 8})
	outer.Append(inner)
	require.Equal(t, 2, outer.Len())

	dropped := outer.Drop()
	require.Nil(t, outer.Payload)
	require.Same(t, inner, dropped)
}

func TestEraseAll(t *testing.T) {
	a := message.New(fixedHeader{n: 1})
	b := message.New(fixedHeader{n: 1})
	c := message.New(fixedHeader{n: 1})
	a.Append(b)
	b.Append(c)
	a.EraseAll()
	require.Nil(t, a.Payload)
	require.Nil(t, b.Payload)
}

func TestTotalRealBytesAcrossChain(t *testing.T) {
	ip := message.New(fixedHeader{n: 20})
	dm := message.NewDataMessage(message.DataChunk{RealLength: 100, Bytes: make([]byte, 100)})
	ip.Append(message.New(dm))
	require.Equal(t, 100, dm.TotalRealBytes())
}

func TestDataChunkFakeBytes(t *testing.T) {
	c := message.DataChunk{RealLength: 50}
	require.True(t, c.IsFake())
	dm := message.NewDataMessage(c)
	require.Equal(t, 50, dm.TotalRealBytes())
	require.False(t, dm.HasRealBytes())
}

func TestDataChunkSplit(t *testing.T) {
	c := message.DataChunk{RealLength: 10, Bytes: []byte("0123456789")}
	head, tail := c.Split(4)
	require.Equal(t, "0123", string(head.Bytes))
	require.Equal(t, "456789", string(tail.Bytes))
	require.Equal(t, 4, head.RealLength)
	require.Equal(t, 6, tail.RealLength)
}

func TestCloneDeepCopies(t *testing.T) {
	a := message.New(fixedHeader{n: 1})
	b := message.New(fixedHeader{n: 1})
	a.Append(b)
	clone := a.Clone()
	require.NotSame(t, a, clone)
	require.NotSame(t, b, clone.Payload)
	require.Equal(t, a.Len(), clone.Len())
}
