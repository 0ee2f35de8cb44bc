package cluster

import (
	"chorddht/internal/proto"
)

// Dispatch is the single entry point the transport layer calls with
// every decoded message. It enforces the offline guard, then routes to
// the per-kind handler.
func (n *Node) Dispatch(msg proto.Message) {
	n.mx.CountMessage(string(msg.Type))

	if !n.IsOnline() && msg.Type != proto.KindJoin && msg.Type != proto.KindFwJoin && msg.Type != proto.KindAckJoin {
		if proto.IsRequestShaped(msg.Type) {
			n.replyText(msg.Client, "Node "+n.Info.String()+" is offline")
		}
		n.log.WithField("kind", msg.Type).Debug("dropping message, node offline")
		return
	}

	switch msg.Type {
	case proto.KindJoin:
		n.handleJoin(msg)
	case proto.KindFwJoin:
		n.handleFwJoin(msg)
	case proto.KindAckJoin:
		n.handleAckJoin(msg)
	case proto.KindUpdate:
		n.handleUpdate(msg)
	case proto.KindRelocate:
		n.handleRelocate(msg)
	case proto.KindInsert:
		n.handleInsert(msg)
	case proto.KindFwInsert:
		n.handleFwInsert(msg)
	case proto.KindAckInsert:
		n.handleAckInsert(msg)
	case proto.KindDelete:
		n.handleDelete(msg)
	case proto.KindFwDelete:
		n.handleFwDelete(msg)
	case proto.KindAckDelete:
		n.handleAckDelete(msg)
	case proto.KindQuery:
		n.handleQuery(msg)
	case proto.KindFwQuery:
		n.handleFwQuery(msg)
	case proto.KindQueryAll:
		n.handleQueryAll(msg)
	case proto.KindFwQueryAll:
		n.handleFwQueryAll(msg)
	case proto.KindOverlay:
		n.handleOverlay(msg)
	case proto.KindFwOverlay:
		n.handleFwOverlay(msg)
	case proto.KindQuit:
		n.handleQuit(msg)
	default:
		n.log.WithField("kind", msg.Type).Warn("unexpected message kind, ignored")
	}
	n.mx.SetReplicaSetSize(n.ReplicaRangeCount())
}
