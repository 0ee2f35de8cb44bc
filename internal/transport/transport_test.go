package transport

import (
	"io"
	"sync"
	"testing"
	"time"

	"chorddht/internal/proto"
	"chorddht/internal/ring"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler captures every message Dispatch receives.
type recordingHandler struct {
	mu  sync.Mutex
	got []proto.Message
}

func (h *recordingHandler) Dispatch(msg proto.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, msg)
}

func (h *recordingHandler) last() (proto.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.got) == 0 {
		return proto.Message{}, false
	}
	return h.got[len(h.got)-1], true
}

// TestClientServerRoundTrip sends a message through the real codec and
// a real net.Conn end to end, rather than an in-process dispatch
// shortcut. A payload with a non-trivial encoded length (longer than
// the zero-value encoding NewMessage used to measure Size from) must
// still be accepted by the server; this is the path the old Size
// field's self-referential computation broke.
func TestClientServerRoundTrip(t *testing.T) {
	handler := &recordingHandler{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv, err := Listen("127.0.0.1:0", handler, logger)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	client := NewClient()
	clientInfo := ring.NewNodeInfo(nil, 9999)
	payload := proto.InsertData{Key: "a-fairly-long-key-name", Value: "a value long enough to push the encoded size well past a single digit"}
	msg, err := proto.NewMessage(proto.KindInsert, &clientInfo, payload)
	require.NoError(t, err)

	require.NoError(t, client.Send(srv.Addr().String(), msg))

	require.Eventually(t, func() bool {
		_, ok := handler.last()
		return ok
	}, time.Second, 10*time.Millisecond, "server never dispatched the sent message")

	got, _ := handler.last()
	assert.Equal(t, proto.KindInsert, got.Type)
	var decoded proto.InsertData
	require.NoError(t, proto.Decode(got, &decoded))
	assert.Equal(t, payload, decoded)
}
