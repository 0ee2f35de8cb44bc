package cluster

import (
	"testing"

	"chorddht/internal/proto"

	"github.com/stretchr/testify/assert"
)

// TestJoinTransfersPrimaryItemsIntoNewRange is scenario 3 from spec.md
// §8: a lone node A holds everything; inserting several keys then
// joining a second node B must leave every key whose hash now falls in
// B's new primary interval stored at B with replica_idx = 0, and leave
// every other key at A.
func TestJoinTransfersPrimaryItemsIntoNewRange(t *testing.T) {
	fn := newFakeNetwork()
	a := testNode(t, fn, 9220, 1, proto.Eventual, nil)
	a.InitBootstrap()

	client := newReplySink(fn, 9320)
	keys := []string{"k1", "k2", "k3", "k4", "k5"}
	for _, k := range keys {
		a.Dispatch(reqMessage(t, proto.KindInsert, proto.InsertData{Key: k, Value: "v"}, &client.info))
		client.awaitReply(t)
	}

	boot := a.Info
	b := testNode(t, fn, 9221, 1, proto.Eventual, &boot)
	joinAndWait(t, fn, a, b)

	for _, k := range keys {
		h := hashTitle(k)
		owner := a
		if b.IsResponsible(h) {
			owner = b
		}
		item, ok := owner.records.Get(h)
		assert.True(t, ok, "key %s should live at its new primary", k)
		assert.Equal(t, uint8(0), item.ReplicaIdx)
	}
	assert.True(t, b.ReplicaRangeCount() >= 1)
}

// TestJoinOfExistingIdIsIdempotent is the "idempotent join" law from
// spec.md §8: sending Join for a node already in the ring leaves state
// unchanged and replies with a refusal rather than restructuring the
// ring.
func TestJoinOfExistingIdIsIdempotent(t *testing.T) {
	fn := newFakeNetwork()
	a := testNode(t, fn, 9230, 0, proto.Eventual, nil)
	a.InitBootstrap()

	client := newReplySink(fn, 9330)
	a.Dispatch(reqMessage(t, proto.KindJoin, proto.JoinData{NewNode: a.Info}, &client.info))
	reply := client.awaitReply(t)
	assert.Contains(t, reply.Text, "already part of the network")
	assert.Nil(t, a.Previous())
	assert.Nil(t, a.Successor())
}

// TestDepartHandsOffReplicasToSuccessor is scenario 4 from spec.md §8:
// in a three-node chain ring with k=1, the middle node departing must
// hand its last-replica items to its successor via a Relocate(inc=false)
// ripple, and the global item count must be preserved.
func TestDepartHandsOffReplicasToSuccessor(t *testing.T) {
	fn := newFakeNetwork()
	a := testNode(t, fn, 9240, 1, proto.Chain, nil)
	a.InitBootstrap()
	bootInfo := a.Info
	b := testNode(t, fn, 9241, 1, proto.Chain, &bootInfo)
	joinAndWait(t, fn, a, b)
	c := testNode(t, fn, 9242, 1, proto.Chain, &bootInfo)
	joinAndWait(t, fn, a, c)

	client := newReplySink(fn, 9340)
	for _, k := range []string{"x1", "x2", "x3", "x4"} {
		primary := findPrimary(t, []*Node{a, b, c}, k)
		primary.Dispatch(reqMessage(t, proto.KindInsert, proto.InsertData{Key: k, Value: "v"}, &client.info))
		client.awaitReply(t)
	}

	totalBefore := a.RecordCount() + b.RecordCount() + c.RecordCount()

	// depart the non-bootstrap node in the middle of a/c's coverage.
	departing := b
	departing.Dispatch(reqMessage(t, proto.KindQuit, proto.QuitData{}, &client.info))
	client.awaitReply(t)

	survivors := []*Node{a, c}
	totalAfter := 0
	for _, n := range survivors {
		totalAfter += n.RecordCount()
	}
	assert.Equal(t, totalBefore, totalAfter, "item count must be preserved across a depart handoff")
	assert.False(t, departing.IsOnline())
}

func findPrimary(t *testing.T, nodes []*Node, key string) *Node {
	t.Helper()
	h := hashTitle(key)
	for _, n := range nodes {
		if n.IsResponsible(h) {
			return n
		}
	}
	t.Fatalf("no primary found for key %s", key)
	return nil
}

// TestOverlayVisitsEveryNode is scenario 5 from spec.md §8 scaled down
// to three nodes: overlay issued at any node must reply exactly once
// to the originator, listing every live node.
func TestOverlayVisitsEveryNode(t *testing.T) {
	fn := newFakeNetwork()
	a := testNode(t, fn, 9250, 0, proto.Eventual, nil)
	a.InitBootstrap()
	bootInfo := a.Info
	b := testNode(t, fn, 9251, 0, proto.Eventual, &bootInfo)
	joinAndWait(t, fn, a, b)
	c := testNode(t, fn, 9252, 0, proto.Eventual, &bootInfo)
	joinAndWait(t, fn, a, c)

	client := newReplySink(fn, 9350)
	a.Dispatch(reqMessage(t, proto.KindOverlay, proto.OverlayData{}, &client.info))
	reply := client.awaitReply(t)

	for _, n := range []*Node{a, b, c} {
		assert.Contains(t, reply.Text, n.Info.String())
	}
}
