package cluster

import "chorddht/internal/ring"

// IsResponsible reports whether k falls in this node's primary
// interval (previous.id, self.id]. A node with no previous (alone in
// the ring) is responsible for everything.
func (n *Node) IsResponsible(k ring.Id) bool {
	prev := n.Previous()
	if prev == nil {
		return true
	}
	return ring.InHalfOpen(k, prev.Id, n.Info.Id)
}

// IsReplicaManager reports whether this node stores a copy of k, and
// at what distance from the primary. 0 means this node is the
// primary; 1..K means it holds a replica at that index; -1 means it
// holds nothing for k.
func (n *Node) IsReplicaManager(k ring.Id) int {
	if n.IsResponsible(k) {
		return 0
	}
	n.replMu.RLock()
	defer n.replMu.RUnlock()
	return n.replicaRanges.IsSubset(k)
}

// MaybeNextResponsible reports whether the next hop toward k's primary
// is this node's successor (true) or its previous (false). Per the
// design notes this rule has a known boundary issue on a two-node
// ring: the non-wrap case only checks k > self.id with no upper bound,
// and the wrap case's OR can both hold simultaneously when there are
// only two live nodes. It is implemented exactly as specified; callers
// relying on routing correctness at ring_size=2 should verify with a
// dedicated test (see routing_test.go).
func (n *Node) MaybeNextResponsible(k ring.Id) bool {
	succ := n.Successor()
	if succ == nil {
		return false
	}
	if n.Info.Id.Less(succ.Id) {
		return k.Greater(n.Info.Id)
	}
	return k.Greater(n.Info.Id) || k.LessEq(succ.Id)
}
