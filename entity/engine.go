package entity

import (
	"github.com/pkg/errors"
	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/ltime"
	"github.com/s3sim/core/scheduler"
)

// Engine is the top-level arena owning every [Net], [Host],
// [NetworkInterface], and [Link] in the simulated model, plus the
// [scheduler.Engine] that drives them. Entities reference each other only
// by typed index through the Engine — there are no raw back-pointers
// (spec.md §9).
type Engine struct {
	Logger ltime.Logger
	Sched  *scheduler.Engine

	nets       []*Net
	hosts      []*Host
	interfaces []*NetworkInterface
	links      []*Link

	nextChannelID scheduler.ChannelID
	built         bool
}

// NewEngine creates an [Engine] with nTimelines timelines and a single
// top-level net.
func NewEngine(nTimelines int, logger ltime.Logger) (*Engine, error) {
	sched, err := scheduler.NewEngine(nTimelines, logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{Logger: logger, Sched: sched}
	e.nets = append(e.nets, &Net{ID: 0, Name: "top", Parent: NoNet})
	return e, nil
}

// Net returns net i.
func (e *Engine) Net(i NetID) *Net { return e.nets[i] }

// Host returns host i.
func (e *Engine) Host(i HostID) *Host { return e.hosts[i] }

// Interface returns interface i.
func (e *Engine) Interface(i InterfaceID) *NetworkInterface { return e.interfaces[i] }

// Link returns link i.
func (e *Engine) Link(i LinkID) *Link { return e.links[i] }

// TopNet is the root of the ownership tree.
const TopNet NetID = 0

// AddSubNet creates a new Net owned by parent.
func (e *Engine) AddSubNet(parent NetID, name string) NetID {
	id := NetID(len(e.nets))
	e.nets = append(e.nets, &Net{ID: id, Name: name, Parent: parent})
	e.nets[parent].SubNets = append(e.nets[parent].SubNets, id)
	return id
}

// AddHost creates a new Host owned by net, bound to the given timeline.
func (e *Engine) AddHost(net NetID, name string, timelineID int) (HostID, error) {
	if timelineID < 0 || timelineID >= e.Sched.NumTimelines() {
		return 0, errors.Errorf("entity: timeline %d out of range", timelineID)
	}
	id := HostID(len(e.hosts))
	e.hosts = append(e.hosts, &Host{
		ID:         id,
		Name:       name,
		NetID:      net,
		TimelineID: timelineID,
		Graph:      NewProtocolGraph(),
	})
	e.nets[net].Hosts = append(e.nets[net].Hosts, id)
	return id, nil
}

// AddInterface creates a new interface on host, assigning it the given
// index and IP and a freshly allocated MAC address.
func (e *Engine) AddInterface(host HostID, index int, ip addr.IPAddr) InterfaceID {
	id := InterfaceID(len(e.interfaces))
	iface := &NetworkInterface{
		ID:     id,
		HostID: host,
		Index:  index,
		IP:     ip,
		Mac:    addr.AllocateMac48(),
	}
	e.interfaces = append(e.interfaces, iface)
	e.hosts[host].Interfaces = append(e.hosts[host].Interfaces, id)
	return id
}

// AddLink connects two or more interfaces with the given delay
// parameters, registers their in-channels with the owning timelines, and
// maps every ordered pair of distinct interfaces' out/in channels with
// the link's mapping_delay — establishing cross-timeline lookahead when
// the interfaces belong to different timelines (spec.md §3, §5).
//
// onDeliver is called, for each interface, with the interface's ID and
// the raw activation payload when a frame arrives on it; it is the
// "host's listen process" spec.md's init_model binds inbound channels to.
func (e *Engine) AddLink(minDelay, propDelay ltime.Time, ifaces []InterfaceID, onDeliver func(InterfaceID, any)) (LinkID, error) {
	if len(ifaces) < 2 {
		return 0, errors.New("entity: a link must connect at least 2 interfaces")
	}
	id := LinkID(len(e.links))
	link := &Link{ID: id, MinDelay: minDelay, PropDelay: propDelay, Interfaces: ifaces}
	e.links = append(e.links, link)

	for _, ifid := range ifaces {
		iface := e.interfaces[ifid]
		if iface.Attached {
			return 0, errors.Errorf("entity: interface %d is already attached to link %d", ifid, iface.LinkID)
		}
		iface.Attached = true
		iface.LinkID = id
		iface.InChannel = e.nextChannelID
		iface.OutChannel = e.nextChannelID + 1
		e.nextChannelID += 2
		host := e.hosts[iface.HostID]
		ifidCopy := ifid
		e.Sched.RegisterInChannel(iface.InChannel, host.TimelineID, func(payload any) {
			onDeliver(ifidCopy, payload)
		})
	}

	delay := link.MappingDelay()
	for _, src := range ifaces {
		for _, dst := range ifaces {
			if src == dst {
				continue
			}
			srcIface := e.interfaces[src]
			dstIface := e.interfaces[dst]
			if err := e.Sched.MapChannel(srcIface.OutChannel, dstIface.InChannel, delay); err != nil {
				return 0, errors.Wrap(err, "entity: AddLink")
			}
		}
	}
	return id, nil
}

// BuildModel finalizes the scheduler's lookahead computation. Must be
// called after every net/host/interface/link has been added.
func (e *Engine) BuildModel() error {
	if err := e.Sched.BuildModel(); err != nil {
		return err
	}
	e.built = true
	return nil
}

// InitModel calls Init on every host's protocol graph, in host-ID order
// (deterministic traversal, spec.md §4.1), then starts the scheduler's
// timeline workers.
func (e *Engine) InitModel() {
	for _, h := range e.hosts {
		h.Graph.InitAll()
	}
	e.Sched.InitModel()
}

// Close stops the scheduler's timeline workers.
func (e *Engine) Close() {
	e.Sched.Close()
}

// HostTimeline returns the [scheduler.Timeline] a host is bound to.
func (e *Engine) HostTimeline(h HostID) *scheduler.Timeline {
	return e.Sched.Timeline(e.hosts[h].TimelineID)
}
