// Package topology assembles hosts, links, and full protocol stacks into
// a runnable [entity.Engine] model: it builds a point-to-point pair or a
// hub-and-spoke star and hands back addressable hosts, wired through the
// scheduler/entity/mac/ip/tcp/udp/socket stack.
package topology

import (
	"github.com/pkg/errors"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
	"github.com/s3sim/core/fib"
	"github.com/s3sim/core/ip"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/mac"
	"github.com/s3sim/core/message"
	"github.com/s3sim/core/nic"
	"github.com/s3sim/core/socket"
	"github.com/s3sim/core/tcp"
	"github.com/s3sim/core/udp"
)

// HostSpec describes an end system's single interface and protocol
// stack: its address, queueing discipline, and TCP tuning (spec.md
// §6's per-host "tcp" attrs block, handed to [tcp.Master.Config]
// unmodified).
type HostSpec struct {
	Name       string
	TimelineID int
	IP         addr.IPAddr
	Queue      nic.DroptailConfig
	TCP        map[string]any
	FIBCache   fib.RouteCache // nil -> fib.NewNoneCache()
}

// RouterSpec describes a multi-interface forwarding-only host: it runs
// an IP session and a FIB, but no transport masters or sockets (spec.md
// §4.3's router is purely a forwarding decision point).
type RouterSpec struct {
	Name       string
	TimelineID int
	Interfaces []addr.IPAddr
	Queue      nic.DroptailConfig
	FIBCache   fib.RouteCache
}

// LinkSpec carries a link's delay and bitrate. BitrateBps feeds the
// default droptail queue built for each attached interface when the
// caller didn't supply HostSpec.Queue/RouterSpec.Queue explicitly.
type LinkSpec struct {
	MinDelay   ltime.Time
	PropDelay  ltime.Time
	BitrateBps float64
}

// Host is the assembled stack returned for an end system: the caller
// drives it by opening sockets through Sockets.
type Host struct {
	ID      entity.HostID
	Iface   entity.InterfaceID
	IP      *ip.Session
	TCP     *tcp.Master
	UDP     *udp.Master
	Sockets *socket.Master
	FIB     *fib.ForwardingTable
}

// Router is the assembled stack for a forwarding-only host.
type Router struct {
	ID     entity.HostID
	Ifaces []entity.InterfaceID
	IP     *ip.Session
	FIB    *fib.ForwardingTable
}

// Builder assembles hosts and links against one [entity.Engine]. It
// exists because entity.Engine.AddLink requires an onDeliver callback at
// link-creation time, before the link's two interfaces have the
// scheduler channel ids their simple_phy sessions are built from — the
// Builder resolves that ordering by dispatching delivery through a table
// populated once each interface's simple_phy exists (see Connect).
type Builder struct {
	Engine *entity.Engine

	macs   map[entity.InterfaceID]*mac.SimpleMac
	phys   map[entity.InterfaceID]*mac.SimplePhy
	queues map[entity.InterfaceID]nic.Queue
}

// NewBuilder creates a [Builder] over e.
func NewBuilder(e *entity.Engine) *Builder {
	return &Builder{
		Engine: e,
		macs:   make(map[entity.InterfaceID]*mac.SimpleMac),
		phys:   make(map[entity.InterfaceID]*mac.SimplePhy),
		queues: make(map[entity.InterfaceID]nic.Queue),
	}
}

// SetInterfaceQueue overrides the queueing discipline Connect builds for
// an interface (e.g. a RED queue instead of the default droptail), per
// spec.md §6's per-interface `queue: "droptail"|"red"` attr. Must be
// called before Connect attaches the interface to a link.
func (b *Builder) SetInterfaceQueue(ifid entity.InterfaceID, q nic.Queue) {
	b.queues[ifid] = q
}

// deliver is the onDeliver callback passed to every entity.Engine.AddLink
// call: an arriving frame is handed to the receiving interface's
// simple_phy, which is the "host's listen process" spec.md's init_model
// binds inbound channels to.
func (b *Builder) deliver(ifid entity.InterfaceID, payload any) {
	msg, ok := payload.(*message.ProtocolMessage)
	if !ok {
		return
	}
	if phy, ok := b.phys[ifid]; ok {
		phy.Pop(msg, nil)
	}
}

// AddHost creates an end system: one interface, a FIB with a default
// route out that interface (a single-homed host has exactly one way
// out, regardless of destination), and a full ip/tcp/udp/socket stack.
func (b *Builder) AddHost(net entity.NetID, spec HostSpec) (*Host, error) {
	e := b.Engine
	hid, err := e.AddHost(net, spec.Name, spec.TimelineID)
	if err != nil {
		return nil, errors.Wrapf(err, "topology: host %s", spec.Name)
	}
	ifid := e.AddInterface(hid, 0, spec.IP)
	if spec.Queue.BitrateBps > 0 {
		b.SetInterfaceQueue(ifid, nic.NewDroptailQueue(spec.Queue))
	}

	cache := spec.FIBCache
	if cache == nil {
		cache = fib.NewNoneCache()
	}
	table := fib.NewForwardingTable(cache)
	table.AddRoute(fib.RouteInfo{
		Destination: addr.IpPrefix{Base: 0, Len: 0},
		Nic:         ifid,
		Protocol:    fib.ProtoStatic,
	}, false)

	ipSess := ip.NewSession(e.Logger)
	ipSess.SetRouter(table)

	simpleMac := mac.NewSimpleMac()
	simpleMac.SetUpper(ipSess)
	ipSess.RegisterLower(ifid, simpleMac, spec.IP)
	b.macs[ifid] = simpleMac

	tcpMaster := tcp.NewMaster()
	if err := tcpMaster.Config(spec.TCP); err != nil {
		return nil, errors.Wrapf(err, "topology: host %s tcp config", spec.Name)
	}
	tcpMaster.SetLower(ipSess)
	tcpMaster.SetLocalIP(spec.IP)
	tcpMaster.SetTimeline(e.HostTimeline(hid))

	udpMaster := udp.NewMaster()
	udpMaster.SetLower(ipSess)
	udpMaster.SetLocalIP(spec.IP)

	ipSess.RegisterUpper(ip.ProtocolTCP, tcpMaster)
	ipSess.RegisterUpper(ip.ProtocolUDP, udpMaster)

	host := e.Host(hid)
	for _, s := range []entity.ProtocolSession{ipSess, tcpMaster, udpMaster} {
		if err := host.Graph.Add(s); err != nil {
			return nil, errors.Wrapf(err, "topology: host %s", spec.Name)
		}
	}

	return &Host{
		ID: hid, Iface: ifid, IP: ipSess, TCP: tcpMaster, UDP: udpMaster,
		Sockets: socket.NewMaster(host.Graph), FIB: table,
	}, nil
}

// AddRouter creates a forwarding-only host with one interface per entry
// in spec.Interfaces. Callers add per-destination routes themselves
// (e.g. NewStar adds a /32 route to each leaf) since a router's routing
// table isn't derivable from its interface list alone.
func (b *Builder) AddRouter(net entity.NetID, spec RouterSpec) (*Router, error) {
	e := b.Engine
	hid, err := e.AddHost(net, spec.Name, spec.TimelineID)
	if err != nil {
		return nil, errors.Wrapf(err, "topology: router %s", spec.Name)
	}

	cache := spec.FIBCache
	if cache == nil {
		cache = fib.NewNoneCache()
	}
	table := fib.NewForwardingTable(cache)
	ipSess := ip.NewSession(e.Logger)
	ipSess.SetRouter(table)

	ifaces := make([]entity.InterfaceID, 0, len(spec.Interfaces))
	for i, a := range spec.Interfaces {
		ifid := e.AddInterface(hid, i, a)
		if spec.Queue.BitrateBps > 0 {
			b.SetInterfaceQueue(ifid, nic.NewDroptailQueue(spec.Queue))
		}
		simpleMac := mac.NewSimpleMac()
		simpleMac.SetUpper(ipSess)
		ipSess.RegisterLower(ifid, simpleMac, a)
		b.macs[ifid] = simpleMac
		ifaces = append(ifaces, ifid)
	}

	host := e.Host(hid)
	if err := host.Graph.Add(ipSess); err != nil {
		return nil, errors.Wrapf(err, "topology: router %s", spec.Name)
	}

	return &Router{ID: hid, Ifaces: ifaces, IP: ipSess, FIB: table}, nil
}

// Connect attaches a link across two or more interfaces: it creates each
// side's simple_phy now that entity.Engine.AddLink has assigned the
// interfaces' channel ids, and wires frame delivery through the Builder.
func (b *Builder) Connect(ifaces []entity.InterfaceID, link LinkSpec) (entity.LinkID, error) {
	e := b.Engine
	lid, err := e.AddLink(link.MinDelay, link.PropDelay, ifaces, b.deliver)
	if err != nil {
		return 0, errors.Wrap(err, "topology: Connect")
	}
	for _, ifid := range ifaces {
		iface := e.Interface(ifid)
		timeline := e.HostTimeline(iface.HostID)
		queue := b.queues[ifid]
		if queue == nil {
			queue = nic.NewDroptailQueue(nic.DroptailConfig{
				BitrateBps:  link.BitrateBps,
				BufferBytes: 64 * 1024,
				Scale:       6,
			})
		}
		phy := mac.NewSimplePhy(e.Sched, timeline, iface.OutChannel, queue, nil)
		m := b.macs[ifid]
		if m == nil {
			return 0, errors.Errorf("topology: interface %d has no simple_mac (build its host before Connect)", ifid)
		}
		phy.SetUpper(m)
		m.SetLower(phy)
		b.phys[ifid] = phy
	}
	return lid, nil
}

// NewPointToPoint wires two end systems together over a single
// point-to-point link, the two-interface case entity.Engine.AddLink
// supports directly.
func NewPointToPoint(b *Builder, net entity.NetID, left, right HostSpec, link LinkSpec) (leftHost, rightHost *Host, err error) {
	leftHost, err = b.AddHost(net, left)
	if err != nil {
		return nil, nil, err
	}
	rightHost, err = b.AddHost(net, right)
	if err != nil {
		return nil, nil, err
	}
	if _, err := b.Connect([]entity.InterfaceID{leftHost.Iface, rightHost.Iface}, link); err != nil {
		return nil, nil, err
	}
	return leftHost, rightHost, nil
}

// NewStar wires a hub-and-spoke topology: one router with a dedicated
// point-to-point link to each leaf host. routerIPs must have the same
// length as leaves, supplying the router-side address of each leaf's
// link. Every leaf already routes everything through its single
// interface (AddHost's default route); NewStar adds the router-side /32
// routes to each leaf so traffic addressed to a specific leaf reaches
// the right spoke.
func NewStar(b *Builder, net entity.NetID, leaves []HostSpec, routerIPs []addr.IPAddr, routerName string, routerTimeline int, link LinkSpec) (*Router, []*Host, error) {
	if len(leaves) != len(routerIPs) {
		return nil, nil, errors.New("topology: NewStar requires one router IP per leaf")
	}
	router, err := b.AddRouter(net, RouterSpec{Name: routerName, TimelineID: routerTimeline, Interfaces: routerIPs})
	if err != nil {
		return nil, nil, err
	}

	hosts := make([]*Host, 0, len(leaves))
	for i, leafSpec := range leaves {
		host, err := b.AddHost(net, leafSpec)
		if err != nil {
			return nil, nil, err
		}
		if _, err := b.Connect([]entity.InterfaceID{host.Iface, router.Ifaces[i]}, link); err != nil {
			return nil, nil, err
		}
		router.FIB.AddRoute(fib.RouteInfo{
			Destination: addr.IpPrefix{Base: leafSpec.IP, Len: 32},
			Nic:         router.Ifaces[i],
			Protocol:    fib.ProtoStatic,
		}, false)
		hosts = append(hosts, host)
	}
	return router, hosts, nil
}
