package addr

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Mac48Addr is a 6-byte MAC-48 address.
type Mac48Addr [6]byte

// mac48Counter backs the monotonic global allocator, ported from
// Mac48Address::Allocate in mac48_address.cc (a static uint64_t counter).
var mac48Counter atomic.Uint64

// AllocateMac48 returns a new, globally unique MAC address. Addresses are
// assigned from a monotonically increasing counter, matching the
// deterministic assignment order of the original implementation.
func AllocateMac48() Mac48Addr {
	id := mac48Counter.Add(1)
	var m Mac48Addr
	m[0] = byte(id >> 40)
	m[1] = byte(id >> 32)
	m[2] = byte(id >> 24)
	m[3] = byte(id >> 16)
	m[4] = byte(id >> 8)
	m[5] = byte(id >> 0)
	return m
}

// Broadcast is the all-ones broadcast address.
var Broadcast = Mac48Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsBroadcast reports whether m is the broadcast address.
func (m Mac48Addr) IsBroadcast() bool {
	return m == Broadcast
}

// IsGroup reports whether m is a group (multicast) address: the
// least-significant bit of the first octet is set.
func (m Mac48Addr) IsGroup() bool {
	return m[0]&0x01 == 0x01
}

// Less orders two MAC addresses by byte sequence.
func (m Mac48Addr) Less(other Mac48Addr) bool {
	for i := 0; i < 6; i++ {
		if m[i] != other[i] {
			return m[i] < other[i]
		}
	}
	return false
}

// String renders the address as colon-separated hex octets.
func (m Mac48Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ParseMac48 parses a colon-separated hex MAC address.
func ParseMac48(s string) (Mac48Addr, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return Mac48Addr{}, errors.Errorf("addr: invalid MAC-48 address: %q", s)
	}
	var m Mac48Addr
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return Mac48Addr{}, errors.Wrapf(err, "addr: invalid MAC-48 octet in %q", s)
		}
		m[i] = byte(v)
	}
	return m, nil
}
