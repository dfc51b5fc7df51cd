package addr_test

import (
	"testing"

	"github.com/s3sim/core/addr"
	"github.com/stretchr/testify/require"
)

func TestIPRoundTrip(t *testing.T) {
	cases := []string{"0.0.0.0", "255.255.255.255", "10.1.2.3", "192.168.0.1"}
	for _, s := range cases {
		ip, err := addr.ParseIP(s)
		require.NoError(t, err)
		require.Equal(t, s, ip.String())
	}
}

func TestIpPrefixContains(t *testing.T) {
	base, _ := addr.ParseIP("10.1.2.0")
	p := addr.IpPrefix{Base: base, Len: 24}
	in, _ := addr.ParseIP("10.1.2.255")
	out, _ := addr.ParseIP("10.1.3.0")
	require.True(t, p.Contains(in))
	require.False(t, p.Contains(out))
}

func TestIpPrefixZeroLenMatchesEverything(t *testing.T) {
	p := addr.IpPrefix{Base: 0, Len: 0}
	any, _ := addr.ParseIP("8.8.8.8")
	require.True(t, p.Contains(any))
}

func TestMac48Allocation(t *testing.T) {
	a := addr.AllocateMac48()
	b := addr.AllocateMac48()
	require.NotEqual(t, a, b)
	require.True(t, a.Less(b) || b.Less(a))
}

func TestMac48RoundTrip(t *testing.T) {
	m, err := addr.ParseMac48("ff:ff:ff:ff:ff:ff")
	require.NoError(t, err)
	require.Equal(t, addr.Broadcast, m)
	require.True(t, m.IsBroadcast())
}

func TestNhiRoundTrip(t *testing.T) {
	cases := []string{"0:2:3", "0:2:3(1)", "5"}
	for _, s := range cases {
		n, err := addr.ParseNhi(s)
		require.NoError(t, err)
		require.Equal(t, s, n.String())
	}
}
