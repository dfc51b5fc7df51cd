package tcp

import (
	"github.com/pkg/errors"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/ip"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/signal"
)

// State is one of the 11 TCP connection states (spec.md §4.4.2).
type State int

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateCloseWait
	StateLastAck
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynReceived:
		return "SYN_RECEIVED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateClosing:
		return "CLOSING"
	case StateTimeWait:
		return "TIME_WAIT"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotConnected = errors.New("tcp: connection is not in a sendable state")
	ErrIllegalState = errors.New("tcp: action illegal in current state")
)

// Session is one TCP connection (spec.md §4.4.2–§4.4.7). It is owned and
// demultiplexed to by a [Master].
type Session struct {
	master *Master

	state State

	localPort, peerPort uint16
	peerIP              addr.IPAddr

	sndwnd *SendWindow
	rcvwnd *RecvWindow
	cong   *Congestion
	rtt    *RTTEstimator

	remoteWndSize uint32

	closeIssued         bool
	simultaneousClosing bool
	delayedAckPending   bool

	sackPermittedLocal bool
	sackPermittedPeer  bool
	rcvScoreboard      TCPBlockList

	measuredSeq  uint32
	rttCount     int
	rttMeasuring bool

	retransmitTicks int
	mslTicks        int
}

func newSession(m *Master, localPort uint16) *Session {
	s := &Session{
		master:             m,
		state:              StateClosed,
		localPort:          localPort,
		sackPermittedLocal: m.cfg.Version == SACK,
	}
	s.enterState(StateClosed, false)
	return s
}

func (s *Session) mss() uint32 { return s.master.cfg.Mss }

// State returns the session's current connection state.
func (s *Session) State() State { return s.state }

// LocalPort returns the local port this session is bound to, used by
// the socket layer to rebind the master's notifier on an accept
// hand-off.
func (s *Session) LocalPort() uint16 { return s.localPort }

// enterState runs the entry action for the target state (spec.md
// §4.4.2's "State entries").
func (s *Session) enterState(next State, fromListen bool) {
	prev := s.state
	s.state = next

	switch next {
	case StateClosed:
		s.retransmitTicks = 0
		s.mslTicks = 0
		s.rttCount = 0
		s.rttMeasuring = false
		s.sndwnd = nil
		s.rcvwnd = nil
		s.cong = NewCongestion(s.master.cfg.Version, s.master.cfg.Mss, s.master.cfg.InitThresh, s.master.cfg.MaxCongWnd)
		s.rtt = NewRTTEstimator(s.master.cfg.Scale, s.master.cfg.SlowTimeout)
		s.delayedAckPending = false
		s.master.markIdle(s)

	case StateSynSent:
		s.sndwnd = NewSendWindow(s.master.cfg.ISS, s.master.cfg.SndWndSize, int(s.master.cfg.SndBufSize))
		s.rcvwnd = NewRecvWindow(0, s.master.cfg.RcvWndSize)
		s.sndwnd.SynIncl = true
		s.master.markConnected(s)
		s.sendSyn()

	case StateSynReceived:
		s.master.markConnected(s)
		if fromListen {
			s.sndwnd.SynIncl = true
			s.sendData(s.sndwnd.Start(), 0, FlagSYN|FlagACK, s.rcvwnd.Expect(), true, true)
		} else {
			s.sendData(s.sndwnd.FirstUnused(), 0, FlagACK, s.rcvwnd.Expect(), false, false)
		}

	case StateListen:
		s.master.markListening(s)
		if prev != StateClosed {
			s.sndwnd = NewSendWindow(s.master.cfg.ISS, s.master.cfg.SndWndSize, int(s.master.cfg.SndBufSize))
			s.rcvwnd = NewRecvWindow(0, s.master.cfg.RcvWndSize)
		}

	case StateEstablished:
		s.simultaneousClosing = false
		s.closeIssued = false
		s.cong.Ssthresh = s.master.cfg.InitThresh
		s.cong.RecoverSeq = s.sndwnd.Start()
		s.raise(signal.OKToSend)

	case StateCloseWait:
		if s.rcvwnd.Buffered() == 0 {
			s.raise(signal.DataAvailable | signal.Closed)
		} else {
			s.raise(signal.DataAvailable)
		}

	case StateLastAck:
		if s.delayedAckPending {
			s.acknowledge(true)
		}

	case StateFinWait1:
		s.sndwnd.FinIncl = true
		s.sendData(s.sndwnd.FirstUnused(), 0, FlagFIN|FlagACK, s.rcvwnd.Expect(), false, true)
		if s.simultaneousClosing {
			s.enterState(StateClosing, false)
		}

	case StateFinWait2:
		s.retransmitTicks = 0

	case StateClosing:
		if s.rcvwnd.Buffered() == 0 {
			s.raise(signal.Closed)
		}

	case StateTimeWait:
		s.mslTicks = 2
	}
}

func (s *Session) raise(sig signal.Signal) {
	if s.master.notifiers[s.localPort] != nil {
		s.master.notifiers[s.localPort].Raise(sig)
	}
}

func (s *Session) sendSyn() {
	s.sendData(s.sndwnd.Start(), 0, FlagSYN, 0, true, true)
}

// sendData is send_data (spec.md §4.4.3): builds and pushes one TCP
// segment, optionally arming the retransmit timer and RTT measurement.
func (s *Session) sendData(seqno uint32, length int, flags Flags, ackno uint32, needCalcRTT, armRxmit bool) error {
	hdr := &Header{
		SrcPort: s.localPort,
		DstPort: s.peerPort,
		Seqno:   seqno,
		Ackno:   ackno,
		Flags:   flags,
		Wsize:   s.calcAdvertisedWnd(),
	}
	if flags.Has(FlagSYN) {
		hdr.SackPermitted = s.sackPermittedLocal
	} else if s.sackPermittedPeer && s.rcvScoreboard.Len() > 0 {
		hdr.SackBlocks = s.rcvScoreboard.FetchBlocks(4)
	}

	chain := message.New(hdr)
	if length > 0 {
		dm := s.sndwnd.Generate(seqno, length)
		chain.Append(message.New(dm))
	}

	if needCalcRTT && !s.rttMeasuring {
		s.measuredSeq = seqno
		s.rttCount = 1
		s.rttMeasuring = true
	}

	err := s.master.lower.Push(chain, ip.PushOptions{DstIP: s.peerIP, Protocol: ip.ProtocolTCP})
	if armRxmit && s.retransmitTicks == 0 {
		s.armRetransmit()
	}
	return err
}

func (s *Session) calcAdvertisedWnd() uint32 {
	used := uint32(s.rcvwnd.Buffered())
	if used >= s.master.cfg.RcvWndSize {
		return 0
	}
	return s.master.cfg.RcvWndSize - used
}

func (s *Session) armRetransmit() {
	ticks := int(s.rtt.Rto / s.master.cfg.SlowTimeout)
	if ticks < 1 {
		ticks = 1
	}
	s.retransmitTicks = ticks
}

func (s *Session) disarmRetransmit() { s.retransmitTicks = 0 }

// segmentAndSend implements spec.md §4.4.3's Nagle-like "send full
// segments, or the exact final fragment" policy.
func (s *Session) segmentAndSend(seqno uint32, limit int) {
	for limit > 0 {
		avail := s.sndwnd.CanSend()
		if avail <= 0 {
			break
		}
		win := int(min32(s.remoteWndSize, s.cong.Cwnd)) - int(s.sndwnd.UsedSize)
		if win < 0 {
			win = 0
		}
		n := avail
		if n > win {
			n = win
		}
		if n > limit {
			n = limit
		}
		if n > int(s.mss()) {
			n = int(s.mss())
		}
		if n <= 0 {
			break
		}
		full := n == int(s.mss())
		last := n == avail
		if !full && !last {
			break
		}
		if !s.sndwnd.Use(uint32(n)) {
			break
		}
		s.sendData(seqno, n, FlagACK, s.rcvwnd.Expect(), true, true)
		seqno += uint32(n)
		limit -= n
	}
}

// Send implements appl_send (spec.md §4.4.3).
func (s *Session) Send(data message.DataChunk) (int, error) {
	if s.state != StateEstablished && s.state != StateCloseWait {
		return 0, ErrNotConnected
	}
	accepted := s.sndwnd.RequestToSend(data)
	s.segmentAndSend(s.sndwnd.FirstUnused(), s.sndwnd.CanSend())
	return accepted, nil
}

// Recv pulls up to maxLen contiguous bytes out of the receive window,
// clearing any now-stale receiver scoreboard entries.
func (s *Session) Recv(maxLen int) message.DataChunk {
	chunk := s.rcvwnd.Generate(maxLen)
	s.rcvScoreboard.ClearBlocks(s.rcvwnd.Start())
	return chunk
}

// Connect issues an active open (spec.md §4.4.2's CLOSED → SYN_SENT).
func (s *Session) Connect(peerIP addr.IPAddr, peerPort uint16) error {
	if s.state != StateClosed {
		return ErrIllegalState
	}
	s.peerIP = peerIP
	s.peerPort = peerPort
	s.enterState(StateSynSent, false)
	return nil
}

// Listen issues a passive open (spec.md §4.4.2's CLOSED → LISTEN).
func (s *Session) Listen() error {
	if s.state != StateClosed {
		return ErrIllegalState
	}
	s.enterState(StateListen, false)
	return nil
}

// Disconnect issues an active close; if the send buffer is already
// drained it enters FIN_WAIT_1 immediately, else it waits for Release to
// drain it (spec.md §4.4.4 step 8).
func (s *Session) Disconnect() error {
	switch s.state {
	case StateEstablished:
		s.closeIssued = true
		s.maybeEnterFinWait1()
	case StateCloseWait:
		s.closeIssued = true
		s.enterState(StateLastAck, false)
	case StateTimeWait:
		// no-op signaling
	default:
		return ErrIllegalState
	}
	return nil
}

func (s *Session) maybeEnterFinWait1() {
	if s.closeIssued && s.state == StateEstablished && s.sndwnd.Buffered() == 0 {
		s.enterState(StateFinWait1, false)
	}
}

func (s *Session) sendRST() {
	s.sendData(s.sndwnd.Next(), 0, FlagRST, 0, false, false)
}

func (s *Session) doReset() {
	s.enterState(StateClosed, false)
	s.raise(signal.ErrorSignal)
}

// Receive implements receive() (spec.md §4.4.4's 9-step algorithm).
func (s *Session) Receive(hdr *Header, payload *message.DataMessage) error {
	if hdr.Flags.Has(FlagRST) {
		if s.state != StateListen {
			s.doReset()
		}
		return nil
	}

	if hdr.Flags.Has(FlagSYN) {
		s.processSyn(hdr)
	}
	if hdr.Flags.Has(FlagFIN) {
		s.processFin()
	}

	if payload != nil && (s.state == StateEstablished || s.state == StateFinWait1 || s.state == StateFinWait2) {
		s.processNewData(hdr, payload)
		if s.rcvwnd.Available() {
			s.raise(signal.DataAvailable)
		}
	}

	mustAck := false
	if hdr.Flags.Has(FlagACK) {
		mustAck = s.processAck(hdr)
	}

	if s.state != StateClosed && (mustAck || payload != nil) {
		s.acknowledge(mustAck)
	}

	if s.state == StateEstablished || s.state == StateCloseWait {
		s.segmentAndSend(s.sndwnd.FirstUnused(), s.sndwnd.CanSend())
		if s.sndwnd.CanSend() > 0 || s.sndwnd.Buffered() < s.master.cfg.SndBufSize {
			s.raise(signal.OKToSend)
		}
	}

	s.maybeEnterFinWait1()
	return nil
}

func (s *Session) processSyn(hdr *Header) {
	switch s.state {
	case StateSynSent:
		s.rcvwnd = NewRecvWindow(hdr.Seqno, hdr.Wsize)
		s.rcvwnd.SynIncl = true
		s.rtt.NRxmits = 0
		s.remoteWndSize = hdr.Wsize
		s.sackPermittedPeer = hdr.SackPermitted
	case StateListen:
		s.rcvwnd = NewRecvWindow(hdr.Seqno, hdr.Wsize)
		s.rcvwnd.SynIncl = true
		s.sndwnd = NewSendWindow(s.master.cfg.ISS, s.master.cfg.SndWndSize, int(s.master.cfg.SndBufSize))
		s.remoteWndSize = hdr.Wsize
		s.sackPermittedPeer = hdr.SackPermitted
		s.raise(signal.AcceptReady)
		s.enterState(StateSynReceived, true)
	}
}

func (s *Session) processFin() {
	s.rcvwnd.FinIncl = true
	switch s.state {
	case StateEstablished:
		if s.closeIssued {
			s.simultaneousClosing = true
		}
		s.enterState(StateCloseWait, false)
	case StateFinWait1:
		s.enterState(StateClosing, false)
	case StateFinWait2:
		s.enterState(StateTimeWait, false)
	}
}

func (s *Session) processNewData(hdr *Header, payload *message.DataMessage) {
	expect := s.rcvwnd.Expect()
	s.rcvwnd.AddSegment(payload, hdr.Seqno)
	if hdr.Seqno > expect {
		s.rcvScoreboard.InsertBlock(hdr.Seqno, uint32(payload.TotalRealBytes()))
	}
}

func (s *Session) processAck(hdr *Header) (mustAck bool) {
	switch s.state {
	case StateSynSent, StateSynReceived:
		if hdr.Ackno != s.sndwnd.Next() {
			s.sendRST()
			s.doReset()
			return false
		}
		wasSynSent := s.state == StateSynSent
		illegal := s.processAcks(hdr)
		if s.state == StateSynSent || s.state == StateSynReceived {
			s.enterState(StateEstablished, false)
		}
		// The client side of the handshake still owes the server a final
		// ACK of its SYN; the server's SYN-ACK already carried its half.
		return illegal || wasSynSent

	case StateEstablished, StateCloseWait:
		return s.processAcks(hdr)

	case StateLastAck:
		if hdr.Ackno == s.sndwnd.Next() {
			s.enterState(StateClosed, false)
		}
		return false

	case StateFinWait1:
		if hdr.Ackno == s.sndwnd.Next() {
			s.enterState(StateFinWait2, false)
		}
		return false

	case StateClosing:
		if hdr.Ackno == s.sndwnd.Next() {
			s.enterState(StateTimeWait, false)
		}
		return false

	default:
		return false
	}
}

// processAcks is process_acks (spec.md §4.4.4).
func (s *Session) processAcks(hdr *Header) (illegal bool) {
	una := s.sndwnd.Start()
	if hdr.Ackno < una || hdr.Ackno > una+s.sndwnd.UsedSize {
		return true
	}
	if hdr.Ackno == una && hdr.Wsize == s.remoteWndSize && s.sndwnd.UsedSize > 0 {
		s.cong.ProcessDupAcks(s.sndwnd.Start(), s.sndwnd.FirstUnused(), s.remoteWndSize, s)
		return false
	}

	if len(hdr.SackBlocks) > 0 {
		s.cong.Scoreboard.ClearBlocks(hdr.Ackno)
		for _, b := range hdr.SackBlocks {
			s.cong.Scoreboard.InsertBlock(b.Left, b.Right-b.Left)
		}
	}

	s.remoteWndSize = hdr.Wsize
	acked := hdr.Ackno - una
	if acked > 0 {
		s.processNewAcks(hdr, acked)
	}
	return false
}

func (s *Session) processNewAcks(hdr *Header, acked uint32) {
	if s.state == StateEstablished || s.state == StateCloseWait {
		s.sndwnd.Release(acked)
	}
	s.disarmRetransmit()
	if s.sndwnd.UsedSize > 0 {
		s.armRetransmit()
	}

	if s.rttMeasuring && hdr.Ackno > s.measuredSeq {
		s.rtt.UpdateTimeout(ltime.Time(s.rttCount - 1))
		s.rttMeasuring = false
	}

	s.cong.ProcessNewAcks(hdr.Ackno, acked, s.sndwnd.UsedSize, s)
}

// acknowledge is spec.md §4.4.3's acknowledge(nodelay).
func (s *Session) acknowledge(nodelay bool) {
	if s.master.cfg.DelayedAck && !nodelay && !s.delayedAckPending {
		s.delayedAckPending = true
		return
	}
	s.delayedAckPending = false
	s.sendData(s.sndwnd.FirstUnused(), 0, FlagACK, s.rcvwnd.Expect(), false, false)
}

// --- Resender (congestion-control callback surface) ---

func (s *Session) ResendFrom(seqno uint32) {
	limit := int(s.sndwnd.FirstUnused() - seqno)
	pos := seqno
	for limit > 0 {
		n := limit
		if n > int(s.mss()) {
			n = int(s.mss())
		}
		s.sendData(pos, n, FlagACK, s.rcvwnd.Expect(), false, true)
		pos += uint32(n)
		limit -= n
	}
}

func (s *Session) ResendOne(seqno uint32) {
	limit := int(s.sndwnd.FirstUnused() - seqno)
	if limit <= 0 {
		return
	}
	n := limit
	if n > int(s.mss()) {
		n = int(s.mss())
	}
	s.sendData(seqno, n, FlagACK, s.rcvwnd.Expect(), false, true)
}

func (s *Session) SendNewData() {
	s.segmentAndSend(s.sndwnd.FirstUnused(), s.sndwnd.CanSend())
}

// --- Timer handling (spec.md §4.4.5) ---

// SlowTimeoutHandling is slow_timeout_handling.
func (s *Session) SlowTimeoutHandling() {
	if s.rttMeasuring {
		s.rttCount++
	}
	if s.retransmitTicks > 0 {
		s.retransmitTicks--
		if s.retransmitTicks == 0 {
			s.onRetransmitTimeout()
		}
	}
	if s.state == StateTimeWait && s.mslTicks > 0 {
		s.mslTicks--
		if s.mslTicks == 0 {
			s.raise(signal.Closed)
			s.master.release(s)
		}
	}
}

func (s *Session) onRetransmitTimeout() {
	if s.master.cfg.Version == SACK {
		s.cong.Scoreboard = TCPBlockList{}
	}
	s.rttCount = 0
	s.rttMeasuring = false
	s.rtt.NRxmits++
	s.cong.RecoverSeq = s.sndwnd.FirstUnused()
	s.cong.TimeoutLoss = true
	s.rtt.BackoffTimeout()

	if s.rtt.NRxmits <= s.master.cfg.MaxRxmit {
		s.cong.Ssthresh = max32(min32(s.cong.Cwnd, s.remoteWndSize)/2, 2*s.mss())
		s.cong.Cwnd = s.mss()
		s.cong.NDupAcks = 0
		if s.master.cfg.MaxRxmit > 0 && s.rtt.NRxmits > s.master.cfg.MaxRxmit/4 {
			s.rtt.RttVar += s.rtt.RttSmoothed >> RTTShift
			s.rtt.RttSmoothed = 0
		}
		s.disarmRetransmit()
		if s.state == StateSynSent {
			s.sendSyn()
		} else {
			s.ResendOne(s.sndwnd.Start())
		}
	} else {
		s.sendRST()
		s.doReset()
	}
}

// FastTimeoutHandling is fast_timeout_handling.
func (s *Session) FastTimeoutHandling() {
	if s.delayedAckPending {
		s.sendData(s.sndwnd.FirstUnused(), 0, FlagACK, s.rcvwnd.Expect(), false, false)
		s.delayedAckPending = false
	}
}
