package fib

import "github.com/s3sim/core/addr"

// RouteCache is the pluggable lookup-acceleration layer in front of the
// forwarding table's LPM scan (spec.md §4.3). Any mutation of the
// underlying table must call InvalidateAll — the cache invariant (spec.md
// §4.3, §8).
type RouteCache interface {
	Lookup(a addr.IPAddr) (RouteInfo, bool)
	Insert(a addr.IPAddr, r RouteInfo)
	InvalidateAll()
}

// NoneCache never caches; every lookup falls through to LPM.
type NoneCache struct{}

func NewNoneCache() RouteCache                         { return NoneCache{} }
func (NoneCache) Lookup(addr.IPAddr) (RouteInfo, bool)  { return RouteInfo{}, false }
func (NoneCache) Insert(addr.IPAddr, RouteInfo)         {}
func (NoneCache) InvalidateAll()                        {}

// SingleEntryCache remembers only the most recent lookup.
type SingleEntryCache struct {
	valid bool
	key   addr.IPAddr
	route RouteInfo
}

func NewSingleEntryCache() *SingleEntryCache { return &SingleEntryCache{} }

func (c *SingleEntryCache) Lookup(a addr.IPAddr) (RouteInfo, bool) {
	if c.valid && c.key == a {
		return c.route, true
	}
	return RouteInfo{}, false
}

func (c *SingleEntryCache) Insert(a addr.IPAddr, r RouteInfo) {
	c.valid, c.key, c.route = true, a, r
}

func (c *SingleEntryCache) InvalidateAll() { c.valid = false }

// DirectMappedCache hashes each address into one of n slots, with no
// collision chaining (a colliding insert simply evicts).
type DirectMappedCache struct {
	slots []cacheSlot
}

type cacheSlot struct {
	valid bool
	key   addr.IPAddr
	route RouteInfo
}

func NewDirectMappedCache(n int) *DirectMappedCache {
	if n <= 0 {
		n = 1
	}
	return &DirectMappedCache{slots: make([]cacheSlot, n)}
}

func (c *DirectMappedCache) index(a addr.IPAddr) int {
	return int(uint32(a) % uint32(len(c.slots)))
}

func (c *DirectMappedCache) Lookup(a addr.IPAddr) (RouteInfo, bool) {
	s := &c.slots[c.index(a)]
	if s.valid && s.key == a {
		return s.route, true
	}
	return RouteInfo{}, false
}

func (c *DirectMappedCache) Insert(a addr.IPAddr, r RouteInfo) {
	s := &c.slots[c.index(a)]
	s.valid, s.key, s.route = true, a, r
}

func (c *DirectMappedCache) InvalidateAll() {
	for i := range c.slots {
		c.slots[i].valid = false
	}
}

// AssociativeCache is a fully-associative, LRU-evicted cache of capacity
// n entries.
type AssociativeCache struct {
	capacity int
	order    []addr.IPAddr // front = most recently used
	entries  map[addr.IPAddr]RouteInfo
}

func NewAssociativeCache(n int) *AssociativeCache {
	if n <= 0 {
		n = 1
	}
	return &AssociativeCache{capacity: n, entries: make(map[addr.IPAddr]RouteInfo, n)}
}

func (c *AssociativeCache) Lookup(a addr.IPAddr) (RouteInfo, bool) {
	r, ok := c.entries[a]
	if ok {
		c.touch(a)
	}
	return r, ok
}

func (c *AssociativeCache) touch(a addr.IPAddr) {
	for i, k := range c.order {
		if k == a {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append([]addr.IPAddr{a}, c.order...)
}

func (c *AssociativeCache) Insert(a addr.IPAddr, r RouteInfo) {
	if _, exists := c.entries[a]; !exists && len(c.entries) >= c.capacity {
		lru := c.order[len(c.order)-1]
		c.order = c.order[:len(c.order)-1]
		delete(c.entries, lru)
	}
	c.entries[a] = r
	c.touch(a)
}

func (c *AssociativeCache) InvalidateAll() {
	c.entries = make(map[addr.IPAddr]RouteInfo, c.capacity)
	c.order = nil
}
