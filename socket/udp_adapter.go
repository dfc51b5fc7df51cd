package socket

import (
	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/udp"
)

// udpSession adapts *udp.Session to the Session interface: UDP has no
// handshake or half-close states, so Connect always succeeds
// synchronously and Listen/Disconnect are no-ops (spec.md §4.6 notes
// UDP sessions are "connected" purely to pin a default peer).
type udpSession struct {
	*udp.Session
}

func (u udpSession) Connect(ip addr.IPAddr, port uint16) error {
	u.Session.Connect(ip, port)
	return nil
}

func (u udpSession) Listen() error { return nil }

func (u udpSession) Disconnect() error { return nil }
