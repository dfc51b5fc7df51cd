package entity

import "github.com/pkg/errors"

// ProtocolGraph is the ordered stack of [ProtocolSession]s attached to a
// host, indexed by name and by protocol number (spec.md §3).
type ProtocolGraph struct {
	ordered  []ProtocolSession
	byName   map[string]ProtocolSession
	byNumber map[int]ProtocolSession
}

// NewProtocolGraph creates an empty graph.
func NewProtocolGraph() *ProtocolGraph {
	return &ProtocolGraph{
		byName:   map[string]ProtocolSession{},
		byNumber: map[int]ProtocolSession{},
	}
}

// Add appends a session to the graph, indexing it by both its name and
// its protocol number. Returns an error if either is already taken
// (DuplicateProtocol, spec.md §7).
func (g *ProtocolGraph) Add(s ProtocolSession) error {
	name := s.ProtocolName()
	if _, exists := g.byName[name]; exists {
		return errors.Errorf("entity: duplicate protocol session name: %s", name)
	}
	num := s.ProtocolNumber()
	if _, exists := g.byNumber[num]; exists {
		return errors.Errorf("entity: duplicate protocol number: %d", num)
	}
	g.ordered = append(g.ordered, s)
	g.byName[name] = s
	g.byNumber[num] = s
	return nil
}

// SessionByName looks up a session by its registered name.
func (g *ProtocolGraph) SessionByName(name string) (ProtocolSession, bool) {
	s, ok := g.byName[name]
	return s, ok
}

// SessionByNumber looks up a session by its protocol number.
func (g *ProtocolGraph) SessionByNumber(n int) (ProtocolSession, bool) {
	s, ok := g.byNumber[n]
	return s, ok
}

// All returns every session in the graph, in the order they were added
// (bottom of the stack first, by convention: physical, MAC, IP, transport,
// socket).
func (g *ProtocolGraph) All() []ProtocolSession {
	return g.ordered
}

// InitAll calls Init on every session in the graph, in insertion order —
// the deterministic traversal spec.md §4.1's init_model requires.
func (g *ProtocolGraph) InitAll() {
	for _, s := range g.ordered {
		s.Init()
	}
}
