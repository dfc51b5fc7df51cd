package fib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3sim/core/addr"
)

func prefix(base uint32, length uint8) addr.IpPrefix {
	return addr.IpPrefix{Base: addr.IPAddr(base), Len: length}
}

func TestLongestPrefixMatch(t *testing.T) {
	tbl := NewForwardingTable(NewNoneCache())
	tbl.AddRoute(RouteInfo{Destination: prefix(0, 0), NextHop: 1}, false)          // default
	tbl.AddRoute(RouteInfo{Destination: prefix(0x0A000000, 8), NextHop: 2}, false) // 10.0.0.0/8
	tbl.AddRoute(RouteInfo{Destination: prefix(0x0A0A0000, 16), NextHop: 3}, false)

	r, ok := tbl.GetRoute(addr.IPAddr(0x0A0A0101))
	require.True(t, ok)
	require.Equal(t, addr.IPAddr(3), r.NextHop)

	r, ok = tbl.GetRoute(addr.IPAddr(0x0A0B0101))
	require.True(t, ok)
	require.Equal(t, addr.IPAddr(2), r.NextHop)

	r, ok = tbl.GetRoute(addr.IPAddr(0xC0A80101))
	require.True(t, ok)
	require.Equal(t, addr.IPAddr(1), r.NextHop, "falls back to default route")
}

func TestNoMatchWithoutDefault(t *testing.T) {
	tbl := NewForwardingTable(NewNoneCache())
	tbl.AddRoute(RouteInfo{Destination: prefix(0x0A000000, 8), NextHop: 2}, false)
	_, ok := tbl.GetRoute(addr.IPAddr(0xC0A80101))
	require.False(t, ok)
}

func TestCacheInvalidatedOnMutation(t *testing.T) {
	tbl := NewForwardingTable(NewSingleEntryCache())
	tbl.AddRoute(RouteInfo{Destination: prefix(0, 0), NextHop: 1}, false)

	_, ok := tbl.GetRoute(addr.IPAddr(0x01020304))
	require.True(t, ok)

	tbl.AddRoute(RouteInfo{Destination: prefix(0x01000000, 8), NextHop: 9}, false)
	r, ok := tbl.GetRoute(addr.IPAddr(0x01020304))
	require.True(t, ok)
	require.Equal(t, addr.IPAddr(9), r.NextHop, "stale cache entry must not survive a route add")
}

func TestAddRouteReplaceSemantics(t *testing.T) {
	tbl := NewForwardingTable(NewNoneCache())
	require.Equal(t, Success, tbl.AddRoute(RouteInfo{Destination: prefix(0, 0), NextHop: 1}, false))
	require.Equal(t, NotReplaced, tbl.AddRoute(RouteInfo{Destination: prefix(0, 0), NextHop: 2}, false))
	require.Equal(t, Overwritten, tbl.AddRoute(RouteInfo{Destination: prefix(0, 0), NextHop: 3}, true))
}

func TestInvalidateAllByProtocol(t *testing.T) {
	tbl := NewForwardingTable(NewNoneCache())
	tbl.AddRoute(RouteInfo{Destination: prefix(0, 0), NextHop: 1, Protocol: ProtoStatic}, false)
	tbl.AddRoute(RouteInfo{Destination: prefix(0x0A000000, 8), NextHop: 2, Protocol: ProtoNHI}, false)

	tbl.InvalidateAll(ProtoNHI)
	require.Len(t, tbl.Routes(), 1)
	require.Equal(t, ProtoStatic, tbl.Routes()[0].Protocol)
}

func TestAssociativeCacheEviction(t *testing.T) {
	c := NewAssociativeCache(2)
	c.Insert(1, RouteInfo{NextHop: 1})
	c.Insert(2, RouteInfo{NextHop: 2})
	c.Insert(3, RouteInfo{NextHop: 3}) // evicts 1 (LRU)

	_, ok := c.Lookup(1)
	require.False(t, ok)
	_, ok = c.Lookup(2)
	require.True(t, ok)
	_, ok = c.Lookup(3)
	require.True(t, ok)
}
