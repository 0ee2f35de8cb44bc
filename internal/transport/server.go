// Package transport implements the newline-framed TCP server and
// client the node engine runs over (a message's size field is not used
// for framing): one message per connection,
// dispatched to a handler goroutine, with replies flowing back to the
// client on a separate connection the CLI shim pre-opened.
package transport

import (
	"bufio"
	"io"
	"net"

	"chorddht/internal/proto"

	"github.com/sirupsen/logrus"
)

// Handler receives every decoded message read off an accepted
// connection. chorddht/internal/cluster.Node satisfies this via its
// Dispatch method.
type Handler interface {
	Dispatch(msg proto.Message)
}

// Server accepts TCP connections, reads exactly one message from each,
// and hands it to Handler in its own goroutine before closing the
// connection.
type Server struct {
	listener net.Listener
	handler  Handler
	log      *logrus.Entry
}

// Listen binds addr and returns a Server ready to Serve.
func Listen(addr string, handler Handler, logger *logrus.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{listener: ln, handler: handler, log: logrus.NewEntry(logger)}, nil
}

// Addr returns the bound local address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error { return s.listener.Close() }

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	msg, err := proto.ReadMessage(r)
	if err != nil {
		if err != io.EOF {
			s.log.WithError(err).Warn("failed to read message, closing connection")
		}
		return
	}
	s.handler.Dispatch(msg)
}
