package cluster

import (
	"net"
	"sync"
	"testing"
	"time"

	"chorddht/internal/metrics"
	"chorddht/internal/proto"
	"chorddht/internal/ring"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNetwork routes Send calls directly to registered Dispatch
// targets (nodes, or plain reply sinks standing in for a CLI client),
// asynchronously, so chain-mode commit cascades can run concurrently
// with a blocked reader the way they would over real TCP.
type fakeNetwork struct {
	mu   sync.Mutex
	dest map[string]func(proto.Message)
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{dest: make(map[string]func(proto.Message))}
}

func (f *fakeNetwork) register(addr string, fn func(proto.Message)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dest[addr] = fn
}

func (f *fakeNetwork) Send(addr string, msg proto.Message) error {
	f.mu.Lock()
	fn := f.dest[addr]
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	go fn(msg)
	return nil
}

type replySink struct {
	info ring.NodeInfo
	ch   chan proto.ReplyData
}

func newReplySink(net *fakeNetwork, port int) *replySink {
	s := &replySink{
		info: ring.NewNodeInfo(net4(127, 0, 0, 1), port),
		ch:   make(chan proto.ReplyData, 8),
	}
	net.register(s.info.Addr(), func(msg proto.Message) {
		var data proto.ReplyData
		_ = proto.Decode(msg, &data)
		s.ch <- data
	})
	return s
}

func (s *replySink) awaitReply(t *testing.T) proto.ReplyData {
	t.Helper()
	select {
	case r := <-s.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		return proto.ReplyData{}
	}
}

func net4(a, b, c, d byte) net.IP { return net.IPv4(a, b, c, d) }

func testNode(t *testing.T, fn *fakeNetwork, port int, k uint8, mode proto.ConsistencyMode, bootstrap *ring.NodeInfo) *Node {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(nopWriter{})
	info := ring.NewNodeInfo(net4(127, 0, 0, 1), port)
	node := New(Config{
		Info:      info,
		Bootstrap: bootstrap,
		K:         k,
		Mode:      mode,
		Sender:    fn,
		Logger:    logger,
		Metrics:   metrics.New(prometheus.NewRegistry()),
	})
	fn.register(info.Addr(), node.Dispatch)
	return node
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestIsResponsibleAlone(t *testing.T) {
	fn := newFakeNetwork()
	a := testNode(t, fn, 9001, 0, proto.Eventual, nil)
	a.InitBootstrap()
	assert.True(t, a.IsResponsible(ring.Hash([]byte("anything"))))
}

func TestEventualBootstrapOnlyInsertQuery(t *testing.T) {
	fn := newFakeNetwork()
	a := testNode(t, fn, 9010, 0, proto.Eventual, nil)
	a.InitBootstrap()
	client := newReplySink(fn, 9110)

	a.Dispatch(reqMessage(t, proto.KindInsert, proto.InsertData{Key: "foo", Value: "bar"}, &client.info))
	reply := client.awaitReply(t)
	assert.Equal(t, "Inserted (foo : bar) successfully!", reply.Text)

	a.Dispatch(reqMessage(t, proto.KindQuery, proto.QueryData{Key: "foo"}, &client.info))
	reply = client.awaitReply(t)
	assert.Equal(t, "Found (foo : bar)", reply.Text)

	a.Dispatch(reqMessage(t, proto.KindQuery, proto.QueryData{Key: "missing"}, &client.info))
	reply = client.awaitReply(t)
	assert.Equal(t, "Error: missing doesn't exist", reply.Text)
}

func TestOfflineNodeRepliesGuard(t *testing.T) {
	fn := newFakeNetwork()
	a := testNode(t, fn, 9020, 0, proto.Eventual, nil)
	// deliberately not brought online
	client := newReplySink(fn, 9120)

	a.Dispatch(reqMessage(t, proto.KindInsert, proto.InsertData{Key: "foo", Value: "bar"}, &client.info))
	reply := client.awaitReply(t)
	assert.Contains(t, reply.Text, "is offline")
	assert.Equal(t, 0, a.RecordCount())
}

func TestChainWriteThenReadAfterCommit(t *testing.T) {
	fn := newFakeNetwork()
	boot := ring.NewNodeInfo(net4(127, 0, 0, 1), 9030)
	a := testNode(t, fn, 9030, 1, proto.Chain, nil)
	a.InitBootstrap()
	b := testNode(t, fn, 9031, 1, proto.Chain, &boot)

	joinAndWait(t, fn, a, b)

	client := newReplySink(fn, 9130)

	// find whichever of a/b is primary for "X"
	keyHash := hashTitle("X")
	primary := a
	if !a.IsResponsible(keyHash) {
		primary = b
	}

	primary.Dispatch(reqMessage(t, proto.KindInsert, proto.InsertData{Key: "X", Value: "v"}, &client.info))
	reply := client.awaitReply(t)
	assert.Equal(t, "Inserted (X : v) successfully!", reply.Text)

	primary.Dispatch(reqMessage(t, proto.KindQuery, proto.QueryData{Key: "X"}, &client.info))
	reply = client.awaitReply(t)
	assert.Equal(t, "Found (X : v)", reply.Text)
}

func joinAndWait(t *testing.T, fn *fakeNetwork, boot *Node, joiner *Node) {
	t.Helper()
	client := newReplySink(fn, 9999)
	boot.Dispatch(reqMessage(t, proto.KindJoin, proto.JoinData{NewNode: joiner.Info}, &client.info))
	require.Eventually(t, func() bool {
		return joiner.IsOnline()
	}, 2*time.Second, 10*time.Millisecond)
}

func reqMessage(t *testing.T, kind proto.Kind, payload any, client *ring.NodeInfo) proto.Message {
	t.Helper()
	msg, err := proto.NewMessage(kind, client, payload)
	require.NoError(t, err)
	return msg
}
