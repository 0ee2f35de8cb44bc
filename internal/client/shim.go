// Package client implements the CLI-side request/reply shim: it opens
// a listening socket on a side port, attaches that address as the
// "client" field of an outgoing request, and waits for the eventual
// Reply on a fresh connection to that socket. This mirrors how the
// original tool's CLI opened a back-channel before sending a request.
package client

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"chorddht/internal/proto"
	"chorddht/internal/ring"

	"github.com/pkg/errors"
)

// Shim is a single request/reply round trip helper bound to one local
// reply port.
type Shim struct {
	ReplyPort int
	Timeout   time.Duration
}

func NewShim(replyPort int) *Shim {
	return &Shim{ReplyPort: replyPort, Timeout: 10 * time.Second}
}

// Send delivers a request-shaped message of kind carrying payload to
// targetAddr, and blocks for the Reply text that comes back on the
// shim's own listener.
func (s *Shim) Send(targetAddr string, kind proto.Kind, payload any) (string, error) {
	localIP, err := localOutboundIP()
	if err != nil {
		return "", errors.Wrap(err, "client: discovering local address")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.ReplyPort))
	if err != nil {
		return "", errors.Wrap(err, "client: binding reply socket")
	}
	defer ln.Close()

	clientInfo := ring.NewNodeInfo(localIP, s.ReplyPort)
	msg, err := proto.NewMessage(kind, &clientInfo, payload)
	if err != nil {
		return "", errors.Wrap(err, "client: encoding request")
	}

	conn, err := net.DialTimeout("tcp", targetAddr, 5*time.Second)
	if err != nil {
		return "", errors.Wrapf(err, "client: connecting to %s", targetAddr)
	}
	if err := proto.WriteMessage(conn, msg); err != nil {
		conn.Close()
		return "", errors.Wrap(err, "client: sending request")
	}
	conn.Close()

	if err := ln.(*net.TCPListener).SetDeadline(time.Now().Add(s.Timeout)); err != nil {
		return "", err
	}
	replyConn, err := ln.Accept()
	if err != nil {
		return "", errors.Wrapf(err, "client: no reply within %s", s.Timeout)
	}
	defer replyConn.Close()

	reply, err := proto.ReadMessage(bufio.NewReader(replyConn))
	if err != nil {
		return "", errors.Wrap(err, "client: reading reply")
	}
	var data proto.ReplyData
	if err := proto.Decode(reply, &data); err != nil {
		return "", errors.Wrap(err, "client: decoding reply")
	}
	return data.Text, nil
}

// localOutboundIP discovers the local IPv4 address that would be used
// to reach the outside world, by opening (but never sending on) a UDP
// socket to a public address.
func localOutboundIP() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}
