package cluster

import (
	"chorddht/internal/proto"
	"chorddht/internal/ring"
	"chorddht/internal/store"
)

func hashTitle(title string) ring.Id { return ring.Hash([]byte(title)) }

// handleJoin is the user-facing trigger: Join is forwarded toward the
// node responsible for the new id, or executed locally if this node
// already is that primary.
func (n *Node) handleJoin(msg proto.Message) {
	var data proto.JoinData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed Join")
		return
	}
	n.routeJoin(data.NewNode, msg.Client)
}

func (n *Node) handleFwJoin(msg proto.Message) {
	var data proto.JoinData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed FwJoin")
		return
	}
	n.routeJoin(data.NewNode, msg.Client)
}

func (n *Node) routeJoin(newNode ring.NodeInfo, client *ring.NodeInfo) {
	if newNode.Id.Equal(n.Info.Id) {
		n.replyText(client, "Node "+newNode.String()+" is already part of the network")
		return
	}
	if n.IsResponsible(newNode.Id) {
		n.localJoin(newNode, client)
		return
	}
	next := n.Successor()
	if n.MaybeNextResponsible(newNode.Id) && next != nil {
		n.sendTo(*next, proto.KindFwJoin, client, proto.JoinData{NewNode: newNode})
		return
	}
	prev := n.Previous()
	if prev != nil {
		n.sendTo(*prev, proto.KindFwJoin, client, proto.JoinData{NewNode: newNode})
		return
	}
	// alone: we must be responsible for everything, handled above.
	n.localJoin(newNode, client)
}

// localJoin executes the eight-step local-join algorithm at the
// responsible node R for incoming node N.
func (n *Node) localJoin(newNode ring.NodeInfo, client *ring.NodeInfo) {
	wasAlone := n.Previous() == nil
	prevBefore := n.Previous()
	prevBeforeInfo := n.Info
	if prevBefore != nil {
		prevBeforeInfo = *prevBefore
	}

	newRange := ring.NewRange(prevBeforeInfo.Id, newNode.Id)

	n.replMu.Lock()
	n.replicaRanges.Insert(newRange)
	overflow := n.replicaRanges.Len() > int(n.k)
	if overflow {
		n.replicaRanges.PopHead()
	}
	k := n.k
	mode := n.mode
	n.replMu.Unlock()

	var wrapRange *ring.Range
	if !overflow {
		wr := ring.NewRange(newNode.Id, n.Info.Id)
		wrapRange = &wr
	}

	// step 3: set previous <- N locally.
	n.setPrevious(&newNode)

	// step 4: collect items to transfer.
	var transferred []store.Item
	var migrated []ring.Id
	n.records.Each(func(id ring.Id, it store.Item) {
		switch {
		case it.ReplicaIdx > 0:
			transferred = append(transferred, it)
			migrated = append(migrated, id)
		case it.ReplicaIdx == 0 && !ring.InHalfOpen(id, newNode.Id, n.Info.Id):
			it.ReplicaIdx = 0
			transferred = append(transferred, it)
			migrated = append(migrated, id)
		case wrapRange != nil && it.ReplicaIdx == 0 && wrapRange.Contains(id):
			copyItem := it
			copyItem.ReplicaIdx = 1
			transferred = append(transferred, copyItem)
		}
	})
	for _, id := range migrated {
		n.records.Delete(id)
	}

	// step 5: AckJoin to N.
	ackData := proto.AckJoinData{
		Prev:            prevBeforeInfo,
		Succ:            n.Info,
		NewItems:        transferred,
		ReplicationMode: mode,
		ReplicationK:    k,
	}
	if wrapRange != nil {
		ackData.HasTransferred = true
		ackData.TransferredLower = wrapRange.Lower
		ackData.TransferredUpper = wrapRange.Upper
	}
	n.sendTo(newNode, proto.KindAckJoin, client, ackData)

	// step 6: neighbor update.
	if !wasAlone {
		n.sendTo(prevBeforeInfo, proto.KindUpdate, nil, proto.UpdateData{Succ: &newNode})
	} else {
		n.setSuccessor(&newNode)
	}

	// step 7: R shifts its own remaining replica indices.
	n.applyRelocateInc(newRange)

	// step 8: ripple the relocation to the successor.
	kRemaining := int(k) - 2
	if succ := n.Successor(); succ != nil && kRemaining >= 0 && !succ.Id.Equal(newNode.Id) {
		n.sendTo(*succ, proto.KindRelocate, nil, proto.RelocateData{
			KRemaining: kRemaining,
			Inc:        true,
			Range:      &newRange,
		})
	}
	n.log.WithField("new_node", newNode.String()).Info("processed local join")
}

// handleAckJoin installs a newly-joined node's neighbors, seeds its
// record and replica-range state, and brings it online.
func (n *Node) handleAckJoin(msg proto.Message) {
	var data proto.AckJoinData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed AckJoin")
		return
	}
	if data.Prev.Id.Equal(n.Info.Id) {
		n.setPrevious(&data.Succ)
	} else {
		n.setPrevious(&data.Prev)
	}
	n.setSuccessor(&data.Succ)

	n.replMu.Lock()
	n.k = data.ReplicationK
	n.mode = data.ReplicationMode
	if data.HasTransferred {
		n.replicaRanges.Insert(ring.NewRange(data.TransferredLower, data.TransferredUpper))
	}
	n.replMu.Unlock()

	for _, it := range data.NewItems {
		n.records.InsertOrMerge(hashTitle(it.Title), it)
	}
	n.setOnline(true)
	n.log.WithField("prev", data.Prev.String()).WithField("succ", data.Succ.String()).
		Info("join acknowledged, node is online")
	if msg.Client != nil {
		n.replyText(msg.Client, "Node "+n.Info.String()+" joined the network successfully!")
	}
}

// handleUpdate applies a neighbor-pointer change pushed by a peer
// executing a join or depart.
func (n *Node) handleUpdate(msg proto.Message) {
	var data proto.UpdateData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed Update")
		return
	}
	if data.Prev != nil {
		n.setPrevious(data.Prev)
	}
	if data.Succ != nil {
		n.setSuccessor(data.Succ)
	}
}

// applyRelocateInc performs the index-shift step of an inc=true
// Relocate ripple: every non-primary item, and every residual
// zero-index item this node is no longer responsible for, moves one
// hop farther from its primary; items that fall off the end of the
// replication factor are dropped. The node's own coverage is then
// bisected at nr's upper bound.
func (n *Node) applyRelocateInc(nr ring.Range) {
	n.replMu.RLock()
	k := n.k
	n.replMu.RUnlock()

	var drop []ring.Id
	n.records.Each(func(id ring.Id, it store.Item) {
		if it.ReplicaIdx > 0 || (it.ReplicaIdx == 0 && !n.IsResponsible(id)) {
			newIdx := it.ReplicaIdx + 1
			if int(newIdx) > int(k) {
				drop = append(drop, id)
				return
			}
			n.records.SetReplicaIdx(id, newIdx)
		}
	})
	for _, id := range drop {
		n.records.Delete(id)
	}

	n.replMu.Lock()
	n.replicaRanges.SplitRange(nr.Upper)
	if n.replicaRanges.Len() > int(k) {
		n.replicaRanges.PopHead()
	}
	n.replMu.Unlock()
	n.mx.CountRelocation()
}

// handleRelocate dispatches to the join-side (inc=true) or
// depart-side (inc=false) ripple handler.
func (n *Node) handleRelocate(msg proto.Message) {
	var data proto.RelocateData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed Relocate")
		return
	}
	if data.Inc {
		n.handleRelocateJoin(data)
	} else {
		n.handleRelocateDepart(data)
	}
}

func (n *Node) handleRelocateJoin(data proto.RelocateData) {
	if data.Range == nil {
		return
	}
	n.applyRelocateInc(*data.Range)
	if data.KRemaining <= 0 {
		return
	}
	succ := n.Successor()
	if succ == nil {
		return
	}
	n.sendTo(*succ, proto.KindRelocate, nil, proto.RelocateData{
		KRemaining: data.KRemaining - 1,
		Inc:        true,
		Range:      data.Range,
	})
}
