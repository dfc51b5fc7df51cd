// Package entity owns the arena of simulated network entities — nets,
// hosts, interfaces, and links — as an ownership tree with typed-index
// cross-references (spec.md §9's design note on the cyclic
// host<->interface<->link web). No entity holds a Go pointer to another;
// everything goes through the owning [Engine].
package entity

// NetID indexes a Net within an [Engine].
type NetID int

// HostID indexes a Host within an [Engine].
type HostID int

// InterfaceID indexes a NetworkInterface within an [Engine].
type InterfaceID int

// LinkID indexes a Link within an [Engine].
type LinkID int

// NoNet is the sentinel NetID for "no parent" (the top net).
const NoNet NetID = -1
