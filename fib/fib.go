// Package fib implements the forwarding table of spec.md §4.3: longest
// prefix match over IpPrefix routes, with an optional lookup cache and
// listener notification on mutation.
package fib

import (
	"sort"

	"github.com/s3sim/core/addr"
	"github.com/s3sim/core/entity"
)

// RoutingProtocol tags how a route was learned.
type RoutingProtocol int

const (
	ProtoUnspec RoutingProtocol = iota
	ProtoStatic
	ProtoNHI
)

// RouteInfo is one forwarding-table entry (spec.md §4.3).
type RouteInfo struct {
	Destination addr.IpPrefix
	NextHop     addr.IPAddr
	Nic         entity.InterfaceID
	Cost        int32
	Protocol    RoutingProtocol
	Resolved    bool
}

// AddResult is the outcome of [ForwardingTable.AddRoute].
type AddResult int

const (
	Success AddResult = iota
	Overwritten
	NotReplaced
)

// RemoveResult is the outcome of [ForwardingTable.RemoveRoute].
type RemoveResult int

const (
	Removed RemoveResult = iota
	NotFound
)

// RouteListener receives FIB_ADDROUTE/FIB_DELROUTE control notifications.
type RouteListener interface {
	Control(kind entity.ControlType, payload any) error
}

const (
	FibAddRoute entity.ControlType = iota + 1
	FibDelRoute
)

// ForwardingTable implements longest-prefix-match lookup over a flat
// slice of routes kept sorted by descending prefix length — a trie is the
// spec-suggested backend, but spec.md §4.3 mandates only LPM correctness,
// and a sorted-slice scan is the simplest backend that is obviously
// correct.
type ForwardingTable struct {
	routes    []RouteInfo
	cache     RouteCache
	listeners []RouteListener
}

// NewForwardingTable creates a [ForwardingTable] with the given cache
// policy (pass [NewNoneCache] for no caching).
func NewForwardingTable(cache RouteCache) *ForwardingTable {
	return &ForwardingTable{cache: cache}
}

// AddListener registers session to be notified of route mutations.
func (t *ForwardingTable) AddListener(l RouteListener) {
	t.listeners = append(t.listeners, l)
}

func (t *ForwardingTable) notify(kind entity.ControlType, r RouteInfo) {
	for _, l := range t.listeners {
		l.Control(kind, r)
	}
}

// AddRoute inserts or replaces a route for the same destination prefix.
func (t *ForwardingTable) AddRoute(r RouteInfo, replace bool) AddResult {
	for i := range t.routes {
		if t.routes[i].Destination == r.Destination {
			if !replace {
				return NotReplaced
			}
			t.routes[i] = r
			t.cache.InvalidateAll()
			t.notify(FibAddRoute, r)
			return Overwritten
		}
	}
	t.routes = append(t.routes, r)
	sort.Slice(t.routes, func(i, j int) bool {
		return t.routes[i].Destination.Len > t.routes[j].Destination.Len
	})
	t.cache.InvalidateAll()
	t.notify(FibAddRoute, r)
	return Success
}

// RemoveRoute deletes the route for the given destination prefix.
func (t *ForwardingTable) RemoveRoute(dest addr.IpPrefix) RemoveResult {
	for i := range t.routes {
		if t.routes[i].Destination == dest {
			removed := t.routes[i]
			t.routes = append(t.routes[:i], t.routes[i+1:]...)
			t.cache.InvalidateAll()
			t.notify(FibDelRoute, removed)
			return Removed
		}
	}
	return NotFound
}

// GetRoute returns the longest-prefix-matching route for a, consulting
// the cache first and populating it on a miss (spec.md §4.3, §8
// invariant 1).
func (t *ForwardingTable) GetRoute(a addr.IPAddr) (RouteInfo, bool) {
	if r, ok := t.cache.Lookup(a); ok {
		return r, true
	}
	r, ok := t.lpm(a)
	if ok {
		t.cache.Insert(a, r)
	}
	return r, ok
}

// lpm performs the actual longest-prefix match; routes is sorted by
// descending prefix length so the first match is the longest.
func (t *ForwardingTable) lpm(a addr.IPAddr) (RouteInfo, bool) {
	for _, r := range t.routes {
		if r.Destination.Contains(a) {
			return r, true
		}
	}
	return RouteInfo{}, false
}

// InvalidateAll removes every route whose protocol matches proto, or
// every route if proto is [ProtoUnspec].
func (t *ForwardingTable) InvalidateAll(proto RoutingProtocol) {
	kept := t.routes[:0]
	for _, r := range t.routes {
		if proto == ProtoUnspec || r.Protocol == proto {
			t.notify(FibDelRoute, r)
			continue
		}
		kept = append(kept, r)
	}
	t.routes = kept
	t.cache.InvalidateAll()
}

// Routes returns a snapshot of every route, for tests and diagnostics.
func (t *ForwardingTable) Routes() []RouteInfo {
	out := make([]RouteInfo, len(t.routes))
	copy(out, t.routes)
	return out
}
