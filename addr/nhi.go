package addr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NhiTag distinguishes what kind of entity an Nhi names.
type NhiTag int

const (
	// NhiNet tags an Nhi that names a net.
	NhiNet NhiTag = iota
	// NhiMachine tags an Nhi that names a host.
	NhiMachine
	// NhiInterface tags an Nhi that names a host interface.
	NhiInterface
)

// Nhi is a network-hierarchy identifier: an ordered sequence of
// non-negative integers plus a tag, e.g. "0:2:3(1)".
type Nhi struct {
	Ids  []int
	Tag  NhiTag
	Iface int // valid only when Tag == NhiInterface
}

// String renders the Nhi in dotted-decimal form, with a trailing
// "(i)" when it names an interface.
func (n Nhi) String() string {
	parts := make([]string, len(n.Ids))
	for i, id := range n.Ids {
		parts[i] = strconv.Itoa(id)
	}
	s := strings.Join(parts, ":")
	if n.Tag == NhiInterface {
		s = fmt.Sprintf("%s(%d)", s, n.Iface)
	}
	return s
}

// ParseNhi parses the textual form produced by [Nhi.String].
func ParseNhi(s string) (Nhi, error) {
	tag := NhiMachine
	iface := 0
	body := s
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Nhi{}, errors.Errorf("addr: malformed nhi: %q", s)
		}
		body = s[:open]
		ifaceStr := s[open+1 : len(s)-1]
		v, err := strconv.Atoi(ifaceStr)
		if err != nil {
			return Nhi{}, errors.Wrapf(err, "addr: malformed nhi interface index in %q", s)
		}
		iface = v
		tag = NhiInterface
	}
	if body == "" {
		return Nhi{}, errors.Errorf("addr: empty nhi: %q", s)
	}
	parts := strings.Split(body, ":")
	ids := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Nhi{}, errors.Wrapf(err, "addr: malformed nhi component in %q", s)
		}
		if v < 0 {
			return Nhi{}, errors.Errorf("addr: negative nhi component in %q", s)
		}
		ids[i] = v
	}
	return Nhi{Ids: ids, Tag: tag, Iface: iface}, nil
}

// Equal reports whether n and other name the same entity.
func (n Nhi) Equal(other Nhi) bool {
	if n.Tag != other.Tag || n.Iface != other.Iface || len(n.Ids) != len(other.Ids) {
		return false
	}
	for i := range n.Ids {
		if n.Ids[i] != other.Ids[i] {
			return false
		}
	}
	return true
}
