package tcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResender struct {
	resendFrom []uint32
	resendOne  []uint32
	newData    int
}

func (f *fakeResender) ResendFrom(seqno uint32) { f.resendFrom = append(f.resendFrom, seqno) }
func (f *fakeResender) ResendOne(seqno uint32)  { f.resendOne = append(f.resendOne, seqno) }
func (f *fakeResender) SendNewData()            { f.newData++ }

func TestCongestionSlowStartGrowsByMSSPerAck(t *testing.T) {
	c := NewCongestion(Tahoe, 1000, 64000, 0)
	r := &fakeResender{}
	c.ProcessNewAcks(1000, 1000, 0, r)
	require.Equal(t, uint32(2000), c.Cwnd)
}

func TestCongestionRenoFastRecoveryMatchesScenarioS2(t *testing.T) {
	c := NewCongestion(Reno, 1000, 64000, 0)
	c.Cwnd = 4000
	c.NDupAcks = 2
	r := &fakeResender{}

	c.ProcessDupAcks(0, 8000, 8000, r)
	require.Equal(t, uint32(2000), c.Ssthresh)
	require.Equal(t, uint32(5000), c.Cwnd)
	require.Equal(t, []uint32{0}, r.resendOne)

	c.ProcessNewAcks(8000, 8000, 8000, r)
	require.Equal(t, uint32(2000), c.Cwnd)
	require.False(t, c.InFastRecovery)
}

func TestCongestionNewRenoPartialAckDeflatesAndResendsOne(t *testing.T) {
	c := NewCongestion(NewReno, 1000, 64000, 0)
	c.Cwnd = 4000
	c.NDupAcks = 2
	r := &fakeResender{}
	c.ProcessDupAcks(0, 8000, 8000, r)
	require.True(t, c.InFastRecovery)

	c.ProcessNewAcks(2000, 2000, 2000, r)
	require.True(t, c.InFastRecovery)
	require.Equal(t, uint32(4000), c.Cwnd) // 5000 - (2000 - 1000)
	require.Equal(t, []uint32{2000}, r.resendOne[1:])
}

func TestCongestionSACKFastRecoveryMatchesScenarioS6(t *testing.T) {
	mss := uint32(1000)
	c := NewCongestion(SACK, mss, 64000, 0)
	c.Cwnd = 10 * mss
	c.NDupAcks = 2
	r := &fakeResender{}

	c.Scoreboard.InsertBlock(2000, 1000)
	c.Scoreboard.InsertBlock(3000, 2000)
	c.Scoreboard.InsertBlock(6000, 1000)
	c.Scoreboard.InsertBlock(7000, 3000)

	c.ProcessDupAcks(0, 10000, 8000, r)
	require.Equal(t, 7*mss, c.SackPipe)
	require.Contains(t, r.resendOne, uint32(0))
}

func TestCongestionMaxCwndClamps(t *testing.T) {
	c := NewCongestion(Tahoe, 1000, 500, 2500)
	r := &fakeResender{}
	c.ProcessNewAcks(1000, 1000, 0, r)
	c.ProcessNewAcks(2000, 1000, 0, r)
	require.LessOrEqual(t, c.Cwnd, uint32(2500))
}
