package cluster

import (
	"chorddht/internal/proto"
	"chorddht/internal/ring"
)

func (n *Node) handleDelete(msg proto.Message) {
	var data proto.DeleteData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed Delete")
		return
	}
	if n.Mode() == proto.Chain {
		n.chainDeletePrimary(data, msg.Client)
		return
	}
	n.eventualDelete(data, msg.Client)
}

func (n *Node) handleFwDelete(msg proto.Message) {
	var data proto.FwDeleteData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed FwDelete")
		return
	}
	if n.Mode() == proto.Chain {
		n.chainFwDelete(data, msg.Client)
		return
	}
	n.eventualFwDelete(data)
}

func (n *Node) handleAckDelete(msg proto.Message) {
	var data proto.AckDeleteData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed AckDelete")
		return
	}
	it, ok := n.records.Delete(data.KeyHash)
	if !ok {
		return
	}
	if it.ReplicaIdx > 0 {
		if prev := n.Previous(); prev != nil {
			n.sendTo(*prev, proto.KindAckDelete, nil, proto.AckDeleteData{KeyHash: data.KeyHash})
		}
		return
	}
	n.notifyPending(data.KeyHash)
}

// --- Eventual mode ---

func (n *Node) eventualDelete(data proto.DeleteData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	r := n.IsReplicaManager(keyHash)
	if r < 0 {
		n.routeTowardPrimary(proto.KindDelete, keyHash, client, data)
		return
	}

	_, existed := n.records.Delete(keyHash)
	if !existed {
		n.replyText(client, "Error: "+data.Key+" doesn't exist")
	} else {
		n.replyText(client, "Deleted ("+data.Key+") successfully!")
	}

	k := n.K()
	if r > 0 {
		if prev := n.Previous(); prev != nil {
			n.sendTo(*prev, proto.KindFwDelete, nil, proto.FwDeleteData{Key: data.Key, ForwardBack: true})
		}
	}
	if uint8(r) < k {
		if succ := n.Successor(); succ != nil {
			n.sendTo(*succ, proto.KindFwDelete, nil, proto.FwDeleteData{Key: data.Key, ForwardBack: false})
		}
	}
}

func (n *Node) eventualFwDelete(data proto.FwDeleteData) {
	keyHash := hashTitle(data.Key)
	it, existed := n.records.Delete(keyHash)
	if !existed {
		return
	}
	k := n.K()
	if data.ForwardBack {
		if it.ReplicaIdx > 0 {
			if prev := n.Previous(); prev != nil {
				n.sendTo(*prev, proto.KindFwDelete, nil, proto.FwDeleteData{Key: data.Key, ForwardBack: true})
			}
		}
		return
	}
	if it.ReplicaIdx < k {
		if succ := n.Successor(); succ != nil {
			n.sendTo(*succ, proto.KindFwDelete, nil, proto.FwDeleteData{Key: data.Key, ForwardBack: false})
		}
	}
}

// --- Chain mode ---

func (n *Node) chainDeletePrimary(data proto.DeleteData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	if !n.IsResponsible(keyHash) {
		n.routeTowardPrimary(proto.KindDelete, keyHash, client, data)
		return
	}

	if _, ok := n.records.Get(keyHash); !ok {
		n.replyText(client, "Error: "+data.Key+" doesn't exist")
		return
	}
	n.records.SetPending(keyHash, true)

	k := n.K()
	if k == 0 {
		n.records.Delete(keyHash)
		n.replyText(client, "Deleted ("+data.Key+") successfully!")
		return
	}
	if succ := n.Successor(); succ != nil {
		n.sendTo(*succ, proto.KindFwDelete, client, proto.FwDeleteData{Key: data.Key, ForwardBack: false})
	}
}

func (n *Node) chainFwDelete(data proto.FwDeleteData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	it, ok := n.records.Get(keyHash)
	if !ok {
		return
	}
	n.records.SetPending(keyHash, true)

	k := n.K()
	if it.ReplicaIdx < k {
		if succ := n.Successor(); succ != nil {
			n.sendTo(*succ, proto.KindFwDelete, client, proto.FwDeleteData{Key: data.Key, ForwardBack: false})
		}
		return
	}

	n.records.Delete(keyHash)
	n.replyText(client, "Deleted ("+data.Key+") successfully!")
	if prev := n.Previous(); prev != nil {
		n.sendTo(*prev, proto.KindAckDelete, nil, proto.AckDeleteData{KeyHash: keyHash})
	}
}
