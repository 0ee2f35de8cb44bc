package cluster

import (
	"fmt"
	"strings"

	"chorddht/internal/proto"
	"chorddht/internal/ring"
	"chorddht/internal/store"
)

const sentinelTitle = "__nodeID__"

// handleOverlay starts a ring-topology traversal: the originator seeds
// the peer list with itself and hands it to its successor.
func (n *Node) handleOverlay(msg proto.Message) {
	client := msg.Client
	peers := []ring.NodeInfo{n.Info}
	succ := n.Successor()
	if succ == nil {
		n.replyText(client, formatOverlay(peers))
		return
	}
	n.sendTo(*succ, proto.KindFwOverlay, client, proto.FwOverlayData{Peers: peers})
}

// handleFwOverlay continues the traversal, replying once it has come
// back around to the originator.
func (n *Node) handleFwOverlay(msg proto.Message) {
	var data proto.FwOverlayData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed FwOverlay")
		return
	}
	if len(data.Peers) > 0 && data.Peers[0].Id.Equal(n.Info.Id) {
		n.replyText(msg.Client, formatOverlay(data.Peers))
		return
	}
	peers := append(data.Peers, n.Info)
	succ := n.Successor()
	if succ == nil {
		n.replyText(msg.Client, formatOverlay(peers))
		return
	}
	n.sendTo(*succ, proto.KindFwOverlay, msg.Client, proto.FwOverlayData{Peers: peers})
}

// handleQueryAll starts a ring-wide scan, seeding the record list with
// this node's own primary, non-pending items, and hands it off
// tail-ward. Header carries the originator's id so the node that
// receives the traversal back knows to stop and reply.
func (n *Node) handleQueryAll(msg proto.Message) {
	client := msg.Client
	recs := n.ownPrimaryRecords()
	succ := n.Successor()
	if succ == nil {
		n.replyText(client, formatQueryAll(recs))
		return
	}
	n.sendTo(*succ, proto.KindFwQueryAll, client, proto.FwQueryAllData{Records: recs, Header: n.Info.Id})
}

func (n *Node) handleFwQueryAll(msg proto.Message) {
	var data proto.FwQueryAllData
	if err := proto.Decode(msg, &data); err != nil {
		n.log.WithError(err).Warn("malformed FwQueryAll")
		return
	}
	if data.Header.Equal(n.Info.Id) {
		n.replyText(msg.Client, formatQueryAll(data.Records))
		return
	}
	combined := append(data.Records, n.ownPrimaryRecords()...)
	succ := n.Successor()
	if succ == nil {
		n.replyText(msg.Client, formatQueryAll(combined))
		return
	}
	n.sendTo(*succ, proto.KindFwQueryAll, msg.Client, proto.FwQueryAllData{Records: combined, Header: data.Header})
}

// ownPrimaryRecords returns a sentinel item identifying this node
// followed by every primary, non-pending item it holds.
func (n *Node) ownPrimaryRecords() []store.Item {
	out := []store.Item{{Title: sentinelTitle, Value: n.Info.Id.String()}}
	out = append(out, n.records.Filter(func(id ring.Id, it store.Item) bool {
		return it.ReplicaIdx == 0 && !it.Pending
	})...)
	return out
}

func formatOverlay(peers []ring.NodeInfo) string {
	var b strings.Builder
	b.WriteString("Ring overlay:\n")
	for i, p := range peers {
		fmt.Fprintf(&b, "  %d. 🔗 %s\n", i+1, p.String())
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatQueryAll(records []store.Item) string {
	var b strings.Builder
	for _, it := range records {
		if it.Title == sentinelTitle {
			fmt.Fprintf(&b, "--- node %s ---\n", it.Value)
			continue
		}
		fmt.Fprintf(&b, "🔑%s : 🔒%s\n", it.Title, it.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
