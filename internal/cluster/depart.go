package cluster

import (
	"chorddht/internal/proto"
	"chorddht/internal/ring"
	"chorddht/internal/store"
)

// handleQuit implements the depart protocol: the bootstrap refuses to
// leave a non-trivial ring, a lone node simply goes offline, and
// otherwise neighbors are spliced together and replicas are handed off
// to the successor via a Relocate(inc=false) ripple.
func (n *Node) handleQuit(msg proto.Message) {
	var data proto.QuitData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed Quit")
		return
	}

	prev := n.Previous()
	alone := prev == nil

	if n.IsBootstrap() && !alone {
		n.replyText(msg.Client, "bootstrap node refuses to depart while other nodes are alive")
		return
	}
	if alone {
		n.setOnline(false)
		n.replyText(msg.Client, "Node "+n.Info.String()+" departed")
		return
	}

	succ := n.Successor()
	n.sendTo(*prev, proto.KindUpdate, nil, proto.UpdateData{Succ: succ})
	n.sendTo(*succ, proto.KindUpdate, nil, proto.UpdateData{Prev: prev})

	n.replMu.Lock()
	k := n.k
	lastReplicas := n.records.Filter(func(id ring.Id, it store.Item) bool {
		return it.ReplicaIdx == k
	})
	head, hasHead := n.replicaRanges.GetHead()
	rangeCount := n.replicaRanges.Len()
	n.replMu.Unlock()

	var rangeToTransfer *ring.Range
	if hasHead {
		r := head
		if rangeCount == 1 {
			r.Upper = succ.Id
		}
		rangeToTransfer = &r
	} else {
		r := ring.NewRange(n.Info.Id, succ.Id)
		rangeToTransfer = &r
	}

	n.sendTo(*succ, proto.KindRelocate, nil, proto.RelocateData{
		KRemaining: int(k) - 1,
		Inc:        false,
		NewCopies:  lastReplicas,
		Range:      rangeToTransfer,
	})

	n.records.Clear()
	n.replMu.Lock()
	n.replicaRanges = ring.NewUnionRange()
	n.replMu.Unlock()
	n.setOnline(false)
	n.replyText(msg.Client, "Node "+n.Info.String()+" departed")
	n.log.Info("departed")
}

// handleRelocateDepart performs the downstream side of a Relocate
// (inc=false) ripple: items at the tail index move up to fill the
// departed node's slot, the replica-range bookkeeping merges the
// departed node's span back into its predecessor's, and handed-off
// copies are installed.
func (n *Node) handleRelocateDepart(data proto.RelocateData) {
	n.replMu.RLock()
	k := n.k
	n.replMu.RUnlock()

	toTransfer := n.records.Filter(func(id ring.Id, it store.Item) bool {
		return it.ReplicaIdx == k
	})

	n.records.Each(func(id ring.Id, it store.Item) {
		if it.ReplicaIdx > 0 {
			n.records.SetReplicaIdx(id, it.ReplicaIdx-1)
		}
	})

	n.replMu.Lock()
	if data.KRemaining >= 0 && data.KRemaining < n.replicaRanges.Len() {
		n.replicaRanges.MergeAt(data.KRemaining)
	} else if n.replicaRanges.Len() > 0 {
		n.replicaRanges.MergeAt(n.replicaRanges.Len() - 1)
	}
	if data.Range != nil {
		n.replicaRanges.InsertHead(*data.Range)
	}
	n.replMu.Unlock()

	for _, it := range data.NewCopies {
		id := hashTitle(it.Title)
		if _, exists := n.records.Get(id); !exists {
			n.records.Put(id, it)
		}
	}

	n.mx.CountRelocation()

	if data.KRemaining <= 0 {
		return
	}
	succ := n.Successor()
	if succ == nil {
		return
	}
	n.replMu.RLock()
	head, hasHead := n.replicaRanges.GetHead()
	n.replMu.RUnlock()
	var headRange *ring.Range
	if hasHead {
		headRange = &head
	}
	n.sendTo(*succ, proto.KindRelocate, nil, proto.RelocateData{
		KRemaining: data.KRemaining - 1,
		Inc:        false,
		NewCopies:  toTransfer,
		Range:      headRange,
	})
}
