// Package cluster is the node engine: ring membership, replica-range
// bookkeeping, and the eventual/chain replication state machines. This
// is the center of gravity of the whole system.
package cluster

import (
	"sync"

	"chorddht/internal/metrics"
	"chorddht/internal/proto"
	"chorddht/internal/ring"
	"chorddht/internal/store"

	"github.com/sirupsen/logrus"
)

// Sender delivers a message to a peer over a fresh connection, per the
// transport's one-message-per-connection contract. Implemented by
// internal/transport's Client; kept as an interface here so the node
// engine does not import the transport package.
type Sender interface {
	Send(addr string, msg proto.Message) error
}

// Config configures a new Node.
type Config struct {
	Info      ring.NodeInfo
	Bootstrap *ring.NodeInfo // nil iff this node is itself the bootstrap
	K         uint8
	Mode      proto.ConsistencyMode
	Sender    Sender
	Logger    *logrus.Logger
	Metrics   *metrics.Collector
}

// Node is the per-node distributed engine described by the component
// design: neighbor pointers, replication configuration, a per-key
// pending-waiter map, a status flag, and a handler for every message
// kind.
type Node struct {
	Info      ring.NodeInfo
	bootstrap *ring.NodeInfo

	sender Sender
	log    *logrus.Entry
	mx     *metrics.Collector

	neighborMu sync.RWMutex
	previous   *ring.NodeInfo
	successor  *ring.NodeInfo

	replMu        sync.RWMutex
	k             uint8
	mode          proto.ConsistencyMode
	replicaRanges *ring.UnionRange

	records *store.Store

	pendMu   sync.Mutex
	pendings map[ring.Id]chan struct{}

	statusMu sync.RWMutex
	online   bool
}

// New builds a Node in the Offline state. Callers must call either
// InitBootstrap (for the distinguished rendezvous node) or complete a
// Join handshake before the node is usable.
func New(cfg Config) *Node {
	return &Node{
		Info:          cfg.Info,
		bootstrap:     cfg.Bootstrap,
		sender:        cfg.Sender,
		log:           logrus.NewEntry(cfg.Logger).WithField("node", cfg.Info.String()),
		mx:            cfg.Metrics,
		k:             cfg.K,
		mode:          cfg.Mode,
		replicaRanges: ring.NewUnionRange(),
		records:       store.New(),
		pendings:      make(map[ring.Id]chan struct{}),
	}
}

// InitBootstrap installs the trivial one-node ring (previous = successor
// = self, represented as nil neighbors) and marks the node online. Only
// meaningful for the bootstrap node.
func (n *Node) InitBootstrap() {
	n.neighborMu.Lock()
	n.previous = nil
	n.successor = nil
	n.neighborMu.Unlock()
	n.setOnline(true)
	n.log.Info("bootstrap initialized, ring is a single node")
}

func (n *Node) IsBootstrap() bool { return n.bootstrap == nil }

func (n *Node) IsOnline() bool {
	n.statusMu.RLock()
	defer n.statusMu.RUnlock()
	return n.online
}

func (n *Node) setOnline(v bool) {
	n.statusMu.Lock()
	n.online = v
	n.statusMu.Unlock()
}

// Previous and Successor return the current neighbor pointers. A nil
// result means "no other node" (the ring has exactly this one member).
func (n *Node) Previous() *ring.NodeInfo {
	n.neighborMu.RLock()
	defer n.neighborMu.RUnlock()
	return n.previous
}

func (n *Node) Successor() *ring.NodeInfo {
	n.neighborMu.RLock()
	defer n.neighborMu.RUnlock()
	return n.successor
}

func (n *Node) setPrevious(p *ring.NodeInfo) {
	n.neighborMu.Lock()
	n.previous = p
	n.neighborMu.Unlock()
}

func (n *Node) setSuccessor(s *ring.NodeInfo) {
	n.neighborMu.Lock()
	n.successor = s
	n.neighborMu.Unlock()
}

// K returns the configured replication factor.
func (n *Node) K() uint8 {
	n.replMu.RLock()
	defer n.replMu.RUnlock()
	return n.k
}

// Mode returns the configured consistency discipline.
func (n *Node) Mode() proto.ConsistencyMode {
	n.replMu.RLock()
	defer n.replMu.RUnlock()
	return n.mode
}

// RecordCount exposes the store size for introspection endpoints.
func (n *Node) RecordCount() int { return n.records.Len() }

// ReplicaRangeCount exposes the replica-range bookkeeping size for
// introspection and the ReplicaSetSize gauge (set after every
// dispatched message).
func (n *Node) ReplicaRangeCount() int {
	n.replMu.RLock()
	defer n.replMu.RUnlock()
	return n.replicaRanges.Len()
}

// send delivers msg to addr, logging (never retrying) on failure, per
// the error-handling design's "network errors are never retried"
// policy.
func (n *Node) send(addr string, msg proto.Message) {
	if err := n.sender.Send(addr, msg); err != nil {
		n.log.WithError(err).WithField("to", addr).WithField("kind", msg.Type).
			Warn("send failed, dropping silently")
	}
}

// sendTo builds then sends a message to info.
func (n *Node) sendTo(info ring.NodeInfo, kind proto.Kind, client *ring.NodeInfo, payload any) {
	msg, err := proto.NewMessage(kind, client, payload)
	if err != nil {
		n.log.WithError(err).WithField("kind", kind).Error("failed to encode outgoing message")
		return
	}
	n.send(info.Addr(), msg)
}

// replyText sends a Reply carrying text to the client address embedded
// in the originating request, if any.
func (n *Node) replyText(client *ring.NodeInfo, text string) {
	if client == nil {
		n.log.Warn("request-shaped message arrived with no client address, dropping reply")
		return
	}
	n.sendTo(*client, proto.KindReply, nil, proto.ReplyData{Text: text})
}
