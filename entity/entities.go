package entity

import (
	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/scheduler"
)

// Net is a subnet: a recursive container of hosts and sub-nets, formed as
// part of the ownership tree rooted at the engine's top net (spec.md §3).
type Net struct {
	ID      NetID
	Name    string
	Parent  NetID
	SubNets []NetID
	Hosts   []HostID
	Links   []LinkID
}

// Host is a simulated end-system or router: it owns a set of
// [NetworkInterface]s keyed by small integer id and a [ProtocolGraph], and
// is bound to exactly one timeline (spec.md §3).
type Host struct {
	ID         HostID
	Name       string
	NetID      NetID
	TimelineID int
	Interfaces []InterfaceID
	Graph      *ProtocolGraph
}

// NetworkInterface owns a MAC/PHY session pair, an inbound and outbound
// channel, and is attached to exactly one [Link]. It has an assigned
// IPAddr and Mac48Addr (spec.md §3).
type NetworkInterface struct {
	ID     InterfaceID
	HostID HostID
	Index  int // the small integer id within the host
	IP     addr.IPAddr
	Mac    addr.Mac48Addr
	LinkID LinkID
	Attached bool

	InChannel  scheduler.ChannelID
	OutChannel scheduler.ChannelID
}

// Link owns delay parameters and references (non-owning, by ID) to the
// two or more interfaces it connects (spec.md §3).
type Link struct {
	ID           LinkID
	MinDelay     ltime.Time
	PropDelay    ltime.Time
	Interfaces   []InterfaceID
}

// MappingDelay returns min_delay + prop_delay, the per-spec derived
// cross-timeline lookahead contribution of this link.
func (l *Link) MappingDelay() ltime.Time {
	return l.MinDelay + l.PropDelay
}
