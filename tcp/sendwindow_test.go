package tcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendWindowRequestToSendFillsBuffer(t *testing.T) {
	w := NewSendWindow(0, 4096, 10)
	accepted := w.RequestToSend(realChunk("0123456789ABCDE"))
	require.Equal(t, 10, accepted)
	require.Equal(t, 10, w.Buffered())
	require.Equal(t, 5, w.pending.Len())
}

func TestSendWindowGenerateExtractsRange(t *testing.T) {
	w := NewSendWindow(100, 4096, 20)
	w.RequestToSend(realChunk("HelloWorld"))
	dm := w.Generate(105, 5)
	require.Equal(t, "World", string(dm.Chunks[0].Bytes))
}

func TestSendWindowReleasePullsInPending(t *testing.T) {
	w := NewSendWindow(0, 4096, 5)
	w.RequestToSend(realChunk("ABCDEFGHIJ"))
	require.Equal(t, 5, w.Buffered())
	require.Equal(t, 5, w.pending.Len())

	w.Use(5)
	w.Release(5)

	require.Equal(t, uint32(5), w.Start())
	require.Equal(t, 5, w.Buffered())
	require.Equal(t, 0, w.pending.Len())
	dm := w.Generate(5, 5)
	require.Equal(t, "FGHIJ", string(dm.Chunks[0].Bytes))
}

func TestSendWindowCanSendReflectsUnsentBytes(t *testing.T) {
	w := NewSendWindow(0, 4096, 20)
	w.RequestToSend(realChunk("HELLO"))
	require.Equal(t, 5, w.CanSend())
	w.Use(3)
	require.Equal(t, 2, w.CanSend())
}
