package tcp

import (
	"github.com/pkg/errors"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/ip"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/scheduler"
	"github.com/s3sim/core/signal"
)

// Config is a TCP master's per-host configuration (spec.md §4.4.1). All
// MSS-denominated fields are expressed here already converted to bytes
// (the config loader multiplies by Mss, per spec.md's "after load").
type Config struct {
	Version Version

	ISS        uint32
	Mss        uint32
	RcvWndSize uint32
	SndWndSize uint32
	SndBufSize uint32

	MaxRxmit    int
	SlowTimeout ltime.Time
	FastTimeout ltime.Time
	IdleTimeout ltime.Time
	Msl         ltime.Time

	DelayedAck bool
	MaxCongWnd uint32
	InitThresh uint32

	Scale          ltime.Scale
	BootTimeWindow ltime.Time
}

type connKey struct {
	peerIP    addr.IPAddr
	localPort uint16
	peerPort  uint16
}

// Master owns the set of TCP sessions on a host, drives their slow/fast
// timers, and demultiplexes incoming segments (spec.md §4.4.1).
type Master struct {
	cfg   Config
	lower entity.ProtocolSession
	srcIP addr.IPAddr

	timeline *scheduler.Timeline
	bootTime ltime.Time

	notifiers map[uint16]signal.Raiser
	listening map[uint16]*Session
	connected map[connKey]*Session
	idle      map[*Session]bool
	defunct   map[*Session]bool

	nextEphemeralPort uint16
}

// NewMaster creates an unconfigured TCP [Master].
func NewMaster() *Master {
	return &Master{
		notifiers:         make(map[uint16]signal.Raiser),
		listening:         make(map[uint16]*Session),
		connected:         make(map[connKey]*Session),
		idle:              make(map[*Session]bool),
		defunct:           make(map[*Session]bool),
		nextEphemeralPort: 49152,
	}
}

func init() {
	entity.RegisterSessionType("tcp", func() entity.ProtocolSession { return NewMaster() })
}

func (m *Master) ProtocolName() string { return "tcp" }
func (m *Master) ProtocolNumber() int  { return ip.ProtocolTCP }

// Config parses the attrs map produced by the model loader into m.cfg.
func (m *Master) Config(attrs map[string]any) error {
	mss := uint32(536)
	if v, ok := attrs["mss"].(int); ok {
		mss = uint32(v)
	}
	m.cfg = Config{
		Version:        versionFromString(stringAttr(attrs, "version", "tahoe")),
		ISS:            uint32(intAttr(attrs, "iss", 0)),
		Mss:            mss,
		RcvWndSize:     mss * uint32(intAttr(attrs, "rcv_wnd_size", 8)),
		SndWndSize:     mss * uint32(intAttr(attrs, "snd_wnd_size", 8)),
		SndBufSize:     mss * uint32(intAttr(attrs, "snd_buf_size", 16)),
		MaxRxmit:       intAttr(attrs, "max_rxmit", 12),
		SlowTimeout:    ltime.D2T(floatAttr(attrs, "slow_timeout", 0.5), 6),
		FastTimeout:    ltime.D2T(floatAttr(attrs, "fast_timeout", 0.2), 6),
		IdleTimeout:    ltime.D2T(floatAttr(attrs, "idle_timeout", 60), 6),
		Msl:            ltime.D2T(floatAttr(attrs, "msl", 30), 6),
		DelayedAck:     boolAttr(attrs, "delayed_ack", true),
		MaxCongWnd:     mss * uint32(intAttr(attrs, "max_cong_wnd", 0)),
		InitThresh:     mss * uint32(intAttr(attrs, "init_thresh", 64)),
		Scale:          6,
		BootTimeWindow: ltime.D2T(floatAttr(attrs, "boot_time_window", 0), 6),
	}
	return nil
}

func versionFromString(v string) Version {
	switch v {
	case "reno":
		return Reno
	case "newreno":
		return NewReno
	case "sack":
		return SACK
	default:
		return Tahoe
	}
}

func stringAttr(attrs map[string]any, key, def string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return def
}

func intAttr(attrs map[string]any, key string, def int) int {
	if v, ok := attrs[key].(int); ok {
		return v
	}
	return def
}

func floatAttr(attrs map[string]any, key string, def float64) float64 {
	if v, ok := attrs[key].(float64); ok {
		return v
	}
	return def
}

func boolAttr(attrs map[string]any, key string, def bool) bool {
	if v, ok := attrs[key].(bool); ok {
		return v
	}
	return def
}

func (m *Master) Init() {}

// SetLower wires the underlying IP session.
func (m *Master) SetLower(s entity.ProtocolSession) { m.lower = s }

// SetLocalIP records this host's IP address, used as the segment source.
func (m *Master) SetLocalIP(a addr.IPAddr) { m.srcIP = a }

// SetTimeline wires the timeline the master's slow/fast timers run on.
func (m *Master) SetTimeline(t *scheduler.Timeline) { m.timeline = t }

// StartTimers arms the slow and fast timers, phase-aligned to bootTime
// (spec.md §4.4.1).
func (m *Master) StartTimers(bootTime ltime.Time) {
	m.bootTime = bootTime
	m.armSlowTimer()
	m.armFastTimer()
}

func (m *Master) armSlowTimer() {
	now := m.timeline.Now()
	next := NextAlignedTick(m.cfg.SlowTimeout, now, m.bootTime)
	m.timeline.Schedule(next-now, 0, m.slowTick)
}

func (m *Master) armFastTimer() {
	now := m.timeline.Now()
	next := NextAlignedTick(m.cfg.FastTimeout, now, m.bootTime)
	m.timeline.Schedule(next-now, 0, m.fastTick)
}

func (m *Master) slowTick() {
	for _, s := range m.snapshotConnected() {
		s.SlowTimeoutHandling()
	}
	m.armSlowTimer()
}

func (m *Master) fastTick() {
	for _, s := range m.snapshotConnected() {
		s.FastTimeoutHandling()
	}
	m.armFastTimer()
}

func (m *Master) snapshotConnected() []*Session {
	out := make([]*Session, 0, len(m.connected))
	for _, s := range m.connected {
		out = append(out, s)
	}
	return out
}

// NewSession allocates an ephemeral local port and creates a new, CLOSED
// session bound to it.
func (m *Master) NewSession(raiser signal.Raiser) *Session {
	port := m.allocPort()
	return m.NewSessionOnPort(port, raiser)
}

// NewSessionOnPort creates a new, CLOSED session bound to an explicit
// local port (used for LISTEN).
func (m *Master) NewSessionOnPort(port uint16, raiser signal.Raiser) *Session {
	s := newSession(m, port)
	m.notifiers[port] = raiser
	return s
}

// SetNotifier rebinds the signal.Raiser a session on port wakes on,
// used by the socket layer's accept() to hand an established
// connection off to a freshly allocated socket descriptor. There is one
// notifier per port, so the raiser it replaces stops receiving that
// port's signals.
func (m *Master) SetNotifier(port uint16, raiser signal.Raiser) {
	m.notifiers[port] = raiser
}

func (m *Master) allocPort() uint16 {
	p := m.nextEphemeralPort
	m.nextEphemeralPort++
	if m.nextEphemeralPort == 0 {
		m.nextEphemeralPort = 1024
	}
	return p
}

func (m *Master) markIdle(s *Session) {
	m.removeFromSets(s)
	m.idle[s] = true
}

func (m *Master) markConnected(s *Session) {
	delete(m.idle, s)
	delete(m.listening, s.localPort)
	m.connected[connKey{peerIP: s.peerIP, localPort: s.localPort, peerPort: s.peerPort}] = s
}

func (m *Master) markListening(s *Session) {
	delete(m.idle, s)
	m.listening[s.localPort] = s
}

func (m *Master) release(s *Session) {
	m.removeFromSets(s)
	m.defunct[s] = true
}

func (m *Master) removeFromSets(s *Session) {
	delete(m.idle, s)
	delete(m.listening, s.localPort)
	for k, v := range m.connected {
		if v == s {
			delete(m.connected, k)
		}
	}
}

// Push is unused: segments are pushed per-session via send_data, not
// through the master (spec.md §6's trait-based session composition).
func (m *Master) Push(msg *message.ProtocolMessage, opt entity.PushOption) error {
	return errors.New("tcp: Master.Push is not used; push via a Session")
}

// Pop demultiplexes an arriving segment to its connected or listening
// session (spec.md §4.4.1's pop/push).
func (m *Master) Pop(msg *message.ProtocolMessage, opt entity.PopOption) error {
	for s := range m.defunct {
		delete(m.defunct, s)
	}

	popt, ok := opt.(ip.PopOptions)
	if !ok {
		msg.EraseAll()
		return errors.New("tcp: Pop requires ip.PopOptions")
	}
	hdr, ok := msg.Header.(*Header)
	if !ok {
		msg.EraseAll()
		return errors.New("tcp: Pop expects a tcp.Header at the chain head")
	}
	var dm *message.DataMessage
	if payload := msg.Drop(); payload != nil {
		if d, ok := payload.Header.(*message.DataMessage); ok {
			dm = d
		} else {
			payload.EraseAll()
			return errors.New("tcp: Pop expects a DataMessage payload")
		}
	}

	key := connKey{peerIP: popt.SrcIP, localPort: hdr.DstPort, peerPort: hdr.SrcPort}
	if sess, ok := m.connected[key]; ok {
		return sess.Receive(hdr, dm)
	}
	if sess, ok := m.listening[hdr.DstPort]; ok {
		sess.peerIP = popt.SrcIP
		sess.peerPort = hdr.SrcPort
		return sess.Receive(hdr, dm)
	}
	return nil
}

func (m *Master) Control(kind entity.ControlType, payload any) error { return nil }
