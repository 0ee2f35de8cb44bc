package cluster

import "chorddht/internal/ring"

// waitForCommit blocks the calling goroutine until the chain-replication
// write in flight for id has been acknowledged by the tail. The
// handle is shared by every reader currently blocked on this id,
// created by whichever one gets there first and removed by
// notifyPending. Callers must not hold the records lock when calling
// this: Store.Get/SetPending already release their lock before
// returning, so by the time we reach here nothing is held across the
// channel receive.
func (n *Node) waitForCommit(id ring.Id) {
	n.pendMu.Lock()
	ch, ok := n.pendings[id]
	if !ok {
		ch = make(chan struct{})
		n.pendings[id] = ch
	}
	n.pendMu.Unlock()

	// The commit may have landed between the caller's read and the
	// registration above; its notify would then have found no handle.
	if it, ok := n.records.Get(id); !ok || !it.Pending {
		return
	}

	n.mx.CountPendingStall()
	<-ch
}

// notifyPending wakes every reader blocked on id and removes the
// handle, called once the tail's commit acknowledgment reaches the
// primary.
func (n *Node) notifyPending(id ring.Id) {
	n.pendMu.Lock()
	ch, ok := n.pendings[id]
	if ok {
		close(ch)
		delete(n.pendings, id)
	}
	n.pendMu.Unlock()
}
