// Package socket implements the BSD-style descriptor layer applications
// sit behind to drive a TCP or UDP session without touching the
// protocol state machine directly (spec.md §4.5). It is the Go analogue
// of socket_master.cc's block_till/continuation machinery: rather than
// parking a caller's coroutine, operations here take success/failure
// callbacks that the descriptor invokes once the session raises a
// matching signal.
package socket

import (
	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/signal"
)

// Session is the subset of a transport session a socket descriptor
// drives. *tcp.Session already satisfies this; UDP is wrapped by
// udpSession since it has no connect-handshake or half-close states.
type Session interface {
	Connect(ip addr.IPAddr, port uint16) error
	Listen() error
	Disconnect() error
	Send(data message.DataChunk) (int, error)
	Recv(maxLen int) message.DataChunk
}

// Status is the non-blocking result of a Try* operation, spec.md
// §4.5's ESUCCESS/EWOULDBLOCK/ECONNECTED/EGENERIC.
type Status int

const (
	ESUCCESS Status = iota
	EWOULDBLOCK
	ECONNECTED
	EGENERIC
)

// Continuation carries the pair of callbacks a blocking operation
// invokes once it settles, spec.md §4.5's BSocketContinuation.
type Continuation struct {
	Success func(retval int)
	Failure func()
}

// resumeStage tracks which non-blocking operation a descriptor last
// attempted, so a retry after EWOULDBLOCK resumes instead of re-issuing
// the underlying session call (the Go equivalent of nb_socket_master.cc's
// per-call resume bit, collapsed to one field since a descriptor can
// only have one operation outstanding at a time).
type resumeStage int

const (
	resumeNone resumeStage = iota
	resumeConnect
	resumeAcceptWait
	resumeAcceptConnected
)

// waiter is the condition a parked Continuation is waiting on.
type waiter struct {
	mask   signal.Signal
	resume func()
}

// Socket is one descriptor: a session, its last-observed signal state,
// and at most one parked waiter (spec.md §4.5's socket_t).
type Socket struct {
	ID    int
	proto string

	session Session
	state   signal.Signal
	waiter  *waiter
	active  int // active_counter: >0 while a caller is parked on this socket

	connecting bool
	stage      resumeStage
	dying      bool
}

// Raise implements signal.Raiser: TCP/UDP sessions call this on the
// socket that owns them whenever a tracked condition becomes true.
func (sk *Socket) Raise(sig signal.Signal) {
	newly := sig &^ sk.state
	sk.state |= sig
	w := sk.waiter
	if w == nil || newly&w.mask == 0 {
		return
	}
	if sk.state&signal.DataAvailable != 0 {
		// Force the next wait to re-check rather than fire immediately
		// on stale data-available state (spec.md §4.5).
		sk.state &^= signal.DataAvailable
	}
	sk.waiter = nil
	sk.active--
	w.resume()
}

// blockTill parks resume until state already satisfies mask, or the
// next Raise newly sets a bit in mask. any collapses mask to signal.Any,
// matching socket_master.cc's any_signal flag.
func (sk *Socket) blockTill(mask signal.Signal, any bool, resume func()) {
	if any {
		mask = signal.Any
	}
	if sk.state&mask != 0 {
		resume()
		return
	}
	sk.waiter = &waiter{mask: mask, resume: resume}
	sk.active++
}

// Poll reports which of mask's bits are currently set, for a caller
// implementing its own select/poll loop over several descriptors.
func (sk *Socket) Poll(mask signal.Signal) signal.Signal {
	return sk.state & mask
}

// IsActive reports whether a caller is currently parked on this socket.
func (sk *Socket) IsActive() bool { return sk.active > 0 }

func (sk *Socket) reset() {
	sk.connecting = false
	sk.stage = resumeNone
	sk.waiter = nil
}
