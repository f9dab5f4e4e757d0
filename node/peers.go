package node

import (
	"fmt"

	set "gopkg.in/fatih/set.v0"
)

// Peer is one other node's listen endpoint.
type Peer struct {
	Host string
	Port int
}

func (p Peer) String() string { return fmt.Sprintf("%s:%d", p.Host, p.Port) }

// peerSet is the node's fixed list of peers, built once at startup from
// configuration and never mutated in place afterward — §9's re-architecture
// note that "the peer set is effectively immutable after startup; model it
// as an immutable snapshot and require a rebuild step for changes." A
// gopkg.in/fatih/set.v0 set backs membership/dedup during construction; the
// snapshot handed out afterward is a plain read-only slice.
type peerSet struct {
	snapshot []Peer
}

// newPeerSet builds the peer set from configured ports minus self, deduping
// via set.v0 in case the configuration lists a port twice.
func newPeerSet(host string, ports []int, selfPort int) *peerSet {
	seen := set.New(set.ThreadSafe)
	var snapshot []Peer
	for _, port := range ports {
		if port == selfPort {
			continue
		}
		if seen.Has(port) {
			continue
		}
		seen.Add(port)
		snapshot = append(snapshot, Peer{Host: host, Port: port})
	}
	return &peerSet{snapshot: snapshot}
}

// Snapshot returns the immutable peer list.
func (ps *peerSet) Snapshot() []Peer {
	out := make([]Peer, len(ps.snapshot))
	copy(out, ps.snapshot)
	return out
}

// Rebuild produces a fresh peerSet from scratch — the "rebuild step" §9
// calls for instead of in-place mutation of a shared peer dict.
func Rebuild(host string, ports []int, selfPort int) *peerSet {
	return newPeerSet(host, ports, selfPort)
}
