package socket

import (
	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/signal"
)

// TryConnect attempts a non-blocking connect, spec.md §4.5's
// nb connect()/CONNECT1. The first call issues the active open; a
// later call (after EWOULDBLOCK) only re-checks whether the handshake
// has since settled, without re-issuing Connect on the session.
func (m *Master) TryConnect(sk *Socket, ip addr.IPAddr, port uint16) (Status, error) {
	if err := m.bound(sk); err != nil {
		return EGENERIC, err
	}
	if sk.stage == resumeConnect {
		return checkConnectOutcome(sk), nil
	}
	if sk.connecting {
		return EWOULDBLOCK, nil
	}
	if err := sk.session.Connect(ip, port); err != nil {
		return EGENERIC, err
	}
	if sk.state&signal.OKToSend != 0 {
		return ECONNECTED, nil
	}
	sk.connecting = true
	sk.stage = resumeConnect
	return EWOULDBLOCK, nil
}

func checkConnectOutcome(sk *Socket) Status {
	if sk.state&signal.ErrorSignal != 0 {
		sk.reset()
		return EGENERIC
	}
	if sk.state&signal.OKToSend != 0 {
		sk.connecting = false
		sk.stage = resumeNone
		return ECONNECTED
	}
	return EWOULDBLOCK
}

// TryAccept attempts a non-blocking accept, spec.md §4.5's
// ACCEPT1/ACCEPT2 resume pair: the first call puts the session into
// LISTEN and waits for a peer (ACCEPT1); once a peer's SYN has arrived
// it waits for the handshake to finish (ACCEPT2); once OK_TO_SEND
// fires it returns ESUCCESS. makeNew mirrors [Master.Accept]'s
// connection hand-off.
func (m *Master) TryAccept(sk *Socket, makeNew bool) (Status, *Socket, error) {
	if err := m.bound(sk); err != nil {
		return EGENERIC, nil, err
	}
	switch sk.stage {
	case resumeAcceptWait:
		if sk.state&signal.ErrorSignal != 0 {
			sk.reset()
			return EGENERIC, nil, nil
		}
		if sk.state&signal.AcceptReady == 0 {
			return EWOULDBLOCK, nil, nil
		}
		sk.stage = resumeAcceptConnected
		fallthrough
	case resumeAcceptConnected:
		if sk.state&signal.ErrorSignal != 0 {
			sk.reset()
			return EGENERIC, nil, nil
		}
		if sk.state&signal.OKToSend == 0 {
			return EWOULDBLOCK, nil, nil
		}
		sk.stage = resumeNone
		return m.finishAccept(sk, makeNew)
	default:
		if err := sk.session.Listen(); err != nil {
			return EGENERIC, nil, err
		}
		if sk.state&signal.AcceptReady != 0 && sk.state&signal.OKToSend != 0 {
			return m.finishAccept(sk, makeNew)
		}
		sk.stage = resumeAcceptWait
		return EWOULDBLOCK, nil, nil
	}
}

func (m *Master) finishAccept(sk *Socket, makeNew bool) (Status, *Socket, error) {
	if !makeNew {
		return ESUCCESS, sk, nil
	}
	nsk := m.NewSocket()
	nsk.proto = sk.proto
	nsk.session = sk.session
	nsk.state = sk.state
	m.rebindNotifier(nsk)
	return ESUCCESS, nsk, nil
}

// TrySend attempts a non-blocking send, spec.md §4.5's SEND1: it sends
// only if the session currently has room, never parking a waiter.
func (m *Master) TrySend(sk *Socket, data message.DataChunk) (Status, int, error) {
	if err := m.bound(sk); err != nil {
		return EGENERIC, 0, err
	}
	if sk.state&signal.ErrorSignal != 0 {
		sk.reset()
		return EGENERIC, 0, nil
	}
	if sk.state&signal.OKToSend == 0 {
		return EWOULDBLOCK, 0, nil
	}
	n, err := sk.session.Send(data)
	if err != nil {
		return EGENERIC, 0, err
	}
	return ESUCCESS, n, nil
}

// TryRecv attempts a non-blocking recv, spec.md §4.5's RECV1.
func (m *Master) TryRecv(sk *Socket, maxLen int) (Status, message.DataChunk, error) {
	if err := m.bound(sk); err != nil {
		return EGENERIC, message.DataChunk{}, err
	}
	if sk.state&signal.ErrorSignal != 0 {
		sk.reset()
		return EGENERIC, message.DataChunk{}, nil
	}
	if sk.state&(signal.DataAvailable|signal.Closed) == 0 {
		return EWOULDBLOCK, message.DataChunk{}, nil
	}
	return ESUCCESS, sk.session.Recv(maxLen), nil
}

// TryClose attempts a non-blocking close, spec.md §4.5's CLOSE1: it
// issues the disconnect on the first call and reports completion once
// the session settles, freeing the descriptor on success.
func (m *Master) TryClose(sk *Socket) (Status, error) {
	if err := m.bound(sk); err != nil {
		return EGENERIC, err
	}
	if sk.proto == "udp" {
		if err := sk.session.Disconnect(); err != nil {
			return EGENERIC, err
		}
		delete(m.sockets, sk.ID)
		return ESUCCESS, nil
	}
	if sk.state&signal.Closed != 0 {
		delete(m.sockets, sk.ID)
		return ESUCCESS, nil
	}
	if !sk.dying {
		if err := sk.session.Disconnect(); err != nil {
			return EGENERIC, err
		}
		sk.dying = true
	}
	return EWOULDBLOCK, nil
}
