package cluster

import (
	"chorddht/internal/proto"
	"chorddht/internal/ring"
)

// routeTowardPrimary resends a request-shaped message one hop closer
// to the node responsible for keyHash, in whichever ring direction is
// shorter per MaybeNextResponsible.
func (n *Node) routeTowardPrimary(kind proto.Kind, keyHash ring.Id, client *ring.NodeInfo, payload any) {
	succ := n.Successor()
	if n.MaybeNextResponsible(keyHash) && succ != nil {
		n.sendTo(*succ, kind, client, payload)
		return
	}
	if prev := n.Previous(); prev != nil {
		n.sendTo(*prev, kind, client, payload)
	}
}
