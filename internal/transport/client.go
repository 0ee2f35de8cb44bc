package transport

import (
	"net"
	"time"

	"chorddht/internal/proto"
)

// Client sends messages to peers, one fresh TCP connection per
// message, matching the protocol's one-message-per-connection
// contract. It satisfies chorddht/internal/cluster.Sender.
type Client struct {
	DialTimeout time.Duration
}

func NewClient() *Client {
	return &Client{DialTimeout: 5 * time.Second}
}

// Send dials addr, writes msg framed, and closes the connection. No
// response is read: replies, when the protocol produces one, arrive
// on a separate connection to the address named in the message's
// client field.
func (c *Client) Send(addr string, msg proto.Message) error {
	conn, err := net.DialTimeout("tcp", addr, c.DialTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	return proto.WriteMessage(conn, msg)
}
