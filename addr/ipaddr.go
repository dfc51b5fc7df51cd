// Package addr implements the address types of the simulated network:
// IPv4 host-order addresses, MAC-48 addresses, NHI hierarchy identifiers,
// and IP prefixes with longest-prefix containment.
package addr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IPAddr is a 32-bit unsigned host-order IPv4 address.
type IPAddr uint32

// INADDRANY is the "any" source address.
const INADDRANY IPAddr = 0

// ANYDEST is the sentinel destination address matching any peer
// (used by UDP sessions that have not pinned a remote endpoint).
const ANYDEST IPAddr = 0xffffffff

// Invalid is the sentinel value for "no address assigned."
const Invalid IPAddr = 0xfffffffe

// String renders the address in dotted-decimal notation.
func (a IPAddr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
}

// ParseIP parses a dotted-decimal IPv4 address.
func ParseIP(s string) (IPAddr, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, errors.Errorf("addr: invalid IPv4 address: %q", s)
	}
	var out uint32
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, errors.Wrapf(err, "addr: invalid IPv4 octet in %q", s)
		}
		out = (out << 8) | uint32(v)
	}
	return IPAddr(out), nil
}

// IpPrefix is an address prefix (base, len) with len in [0, 32].
type IpPrefix struct {
	Base IPAddr
	Len  uint8
}

// mask returns the bitmask covering the top p.Len bits.
func (p IpPrefix) mask() uint32 {
	if p.Len == 0 {
		return 0
	}
	return ^uint32(0) << (32 - p.Len)
}

// Contains reports whether the prefix contains the given address: the top
// Len bits of a must match Base.
func (p IpPrefix) Contains(a IPAddr) bool {
	m := p.mask()
	return uint32(a)&m == uint32(p.Base)&m
}

// String renders the prefix in CIDR notation.
func (p IpPrefix) String() string {
	return fmt.Sprintf("%s/%d", p.Base, p.Len)
}
