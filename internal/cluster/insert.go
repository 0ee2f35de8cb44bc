package cluster

import (
	"time"

	"chorddht/internal/proto"
	"chorddht/internal/ring"
	"chorddht/internal/store"
)

func (n *Node) handleInsert(msg proto.Message) {
	var data proto.InsertData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed Insert")
		return
	}
	if n.Mode() == proto.Chain {
		n.chainInsertPrimary(data, msg.Client)
		return
	}
	n.eventualInsert(data, msg.Client)
}

func (n *Node) handleFwInsert(msg proto.Message) {
	var data proto.FwInsertData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed FwInsert")
		return
	}
	if n.Mode() == proto.Chain {
		n.chainFwInsert(data, msg.Client)
		return
	}
	n.eventualFwInsert(data)
}

func (n *Node) handleAckInsert(msg proto.Message) {
	var data proto.AckInsertData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed AckInsert")
		return
	}
	item, ok := n.records.SetPending(data.KeyHash, false)
	if !ok {
		return
	}
	if item.ReplicaIdx > 0 {
		if prev := n.Previous(); prev != nil {
			n.sendTo(*prev, proto.KindAckInsert, nil, proto.AckInsertData{KeyHash: data.KeyHash})
		}
		return
	}
	n.notifyPending(data.KeyHash)
}

// --- Eventual mode (§4.7) ---

func (n *Node) eventualInsert(data proto.InsertData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	r := n.IsReplicaManager(keyHash)
	if r < 0 {
		n.routeTowardPrimary(proto.KindInsert, keyHash, client, data)
		return
	}

	merged := n.records.InsertOrMerge(keyHash, store.Item{
		Title:      data.Key,
		Value:      data.Value,
		ReplicaIdx: uint8(r),
		Pending:    false,
		Timestamp:  time.Now(),
	})
	n.replyText(client, "Inserted ("+data.Key+" : "+merged.Value+") successfully!")

	k := n.K()
	if r > 0 {
		if prev := n.Previous(); prev != nil {
			n.sendTo(*prev, proto.KindFwInsert, nil, proto.FwInsertData{
				Key: data.Key, Value: data.Value, Replica: uint8(r - 1), ForwardBack: true,
			})
		}
	}
	if uint8(r) < k {
		if succ := n.Successor(); succ != nil {
			n.sendTo(*succ, proto.KindFwInsert, nil, proto.FwInsertData{
				Key: data.Key, Value: data.Value, Replica: uint8(r + 1), ForwardBack: false,
			})
		}
	}
}

// eventualFwInsert propagates a replicated write one more hop. The
// specification's original source sends both the back-propagation and
// the forward-propagation to previous in a single code path; that is
// treated here as a bug and corrected so the forward branch goes to
// the successor (see DESIGN.md).
func (n *Node) eventualFwInsert(data proto.FwInsertData) {
	keyHash := hashTitle(data.Key)
	n.records.InsertOrMerge(keyHash, store.Item{
		Title: data.Key, Value: data.Value, ReplicaIdx: data.Replica, Pending: false, Timestamp: time.Now(),
	})
	k := n.K()
	if data.ForwardBack {
		if data.Replica > 0 {
			if prev := n.Previous(); prev != nil {
				n.sendTo(*prev, proto.KindFwInsert, nil, proto.FwInsertData{
					Key: data.Key, Value: data.Value, Replica: data.Replica - 1, ForwardBack: true,
				})
			}
		}
		return
	}
	if data.Replica < k {
		if succ := n.Successor(); succ != nil {
			n.sendTo(*succ, proto.KindFwInsert, nil, proto.FwInsertData{
				Key: data.Key, Value: data.Value, Replica: data.Replica + 1, ForwardBack: false,
			})
		}
	}
}

// --- Chain mode (§4.8) ---

func (n *Node) chainInsertPrimary(data proto.InsertData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	if !n.IsResponsible(keyHash) {
		n.routeTowardPrimary(proto.KindInsert, keyHash, client, data)
		return
	}

	n.records.InsertOrMerge(keyHash, store.Item{
		Title: data.Key, Value: data.Value, ReplicaIdx: 0, Pending: true, Timestamp: time.Now(),
	})

	k := n.K()
	if k == 0 {
		merged, _ := n.records.SetPending(keyHash, false)
		n.replyText(client, "Inserted ("+data.Key+" : "+merged.Value+") successfully!")
		return
	}
	if succ := n.Successor(); succ != nil {
		n.sendTo(*succ, proto.KindFwInsert, client, proto.FwInsertData{
			Key: data.Key, Value: data.Value, Replica: 1, ForwardBack: false,
		})
	}
}

func (n *Node) chainFwInsert(data proto.FwInsertData, client *ring.NodeInfo) {
	keyHash := hashTitle(data.Key)
	merged := n.records.InsertOrMerge(keyHash, store.Item{
		Title: data.Key, Value: data.Value, ReplicaIdx: data.Replica, Pending: true, Timestamp: time.Now(),
	})

	k := n.K()
	if data.Replica < k {
		if succ := n.Successor(); succ != nil {
			n.sendTo(*succ, proto.KindFwInsert, client, proto.FwInsertData{
				Key: data.Key, Value: data.Value, Replica: data.Replica + 1, ForwardBack: false,
			})
		}
		return
	}

	// tail: commit, reply to client, ack backward.
	n.records.SetPending(keyHash, false)
	n.replyText(client, "Inserted ("+data.Key+" : "+merged.Value+") successfully!")
	if prev := n.Previous(); prev != nil {
		n.sendTo(*prev, proto.KindAckInsert, nil, proto.AckInsertData{KeyHash: keyHash})
	}
}
