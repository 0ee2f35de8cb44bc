package cluster

import (
	"chorddht/internal/proto"
	"chorddht/internal/ring"
)

func (n *Node) handleQuery(msg proto.Message) {
	var data proto.QueryData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed Query")
		return
	}
	if n.Mode() == proto.Chain {
		keyHash := hashTitle(data.Key)
		if !n.IsResponsible(keyHash) {
			n.routeTowardPrimary(proto.KindQuery, keyHash, msg.Client, data)
			return
		}
		n.chainQueryPrimary(data, msg.Client)
		return
	}
	n.eventualQuery(data, msg.Client)
}

func (n *Node) handleFwQuery(msg proto.Message) {
	var data proto.FwQueryData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed FwQuery")
		return
	}
	if n.Mode() == proto.Chain {
		n.chainFwQuery(data, msg.Client)
		return
	}
	n.eventualQuery(proto.QueryData{Key: data.Key}, msg.Client)
}

// eventualQuery serves the read locally if this node manages a copy,
// otherwise routes FwQuery toward the primary without blocking.
func (n *Node) eventualQuery(data proto.QueryData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	if n.IsReplicaManager(keyHash) >= 0 {
		it, ok := n.records.Get(keyHash)
		if !ok {
			n.replyText(client, "Error: "+data.Key+" doesn't exist")
			return
		}
		n.replyText(client, "Found ("+data.Key+" : "+it.Value+")")
		return
	}
	n.routeTowardPrimary(proto.KindFwQuery, keyHash, client, proto.FwQueryData{Key: data.Key, ForwardTail: false})
}

// chainQueryPrimary implements the linearizable read algorithm of
// §4.9: loop reading the local record, blocking on any in-flight
// commit, and once settled either answering directly (k=0) or
// forwarding tail-ward so only an acknowledged copy answers the
// client.
func (n *Node) chainQueryPrimary(data proto.QueryData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	for {
		it, ok := n.records.Get(keyHash)
		if !ok {
			n.replyText(client, "Error: "+data.Key+" doesn't exist")
			return
		}
		if it.Pending {
			n.waitForCommit(keyHash)
			continue
		}
		k := n.K()
		if k > 0 {
			if succ := n.Successor(); succ != nil {
				n.sendTo(*succ, proto.KindFwQuery, client, proto.FwQueryData{Key: data.Key, ForwardTail: true})
				return
			}
		}
		n.replyText(client, "Found ("+data.Key+" : "+it.Value+")")
		return
	}
}

// chainFwQuery forwards a settled read tail-ward; only the node whose
// local copy has replica_idx == k answers the client.
func (n *Node) chainFwQuery(data proto.FwQueryData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	it, ok := n.records.Get(keyHash)
	if !ok {
		return
	}
	k := n.K()
	if it.ReplicaIdx < k {
		if succ := n.Successor(); succ != nil {
			n.sendTo(*succ, proto.KindFwQuery, client, proto.FwQueryData{Key: data.Key, ForwardTail: true})
		}
		return
	}
	n.replyText(client, "Found ("+data.Key+" : "+it.Value+")")
}
