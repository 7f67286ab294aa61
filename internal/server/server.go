// Package server is the TCP front end of the focuser: one client at a
// time, one command per read, one line of response per command.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cjeanneret/focuser/internal/debug"
	"github.com/cjeanneret/focuser/internal/focuser"
)

// MaxMessageBytes is the size of a single read. Each read is one command.
const MaxMessageBytes = 1024

// Handler processes one client message.
type Handler interface {
	Handle(raw string) focuser.Reply
}

// Server accepts connections and serves them sequentially. While a client
// is connected, further connections wait in the listen backlog.
type Server struct {
	addr    string
	handler Handler

	mu   sync.Mutex
	conn net.Conn // active session, nil between clients
}

// New creates a server for addr (e.g. ":5000").
func New(addr string, h Handler) *Server {
	return &Server{addr: addr, handler: h}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes the
// listener and the active session and returns nil. ln is always closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	debug.Info("Server listening on %s", ln.Addr())

	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	defer stop()
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				debug.Info("Server stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	remote := conn.RemoteAddr()
	debug.Info("Connection accepted from %s", remote)

	buf := make([]byte, MaxMessageBytes)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			reply := s.handler.Handle(string(buf[:n]))
			if _, werr := io.WriteString(conn, reply.Text+"\n"); werr != nil {
				debug.Error(fmt.Errorf("write to %s: %w", remote, werr))
				return
			}
			if reply.Close {
				debug.Info("Closing connection from %s", remote)
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				debug.Info("Client %s closed connection", remote)
			case ctx.Err() != nil:
				debug.Info("Closing connection from %s: shutting down", remote)
			default:
				debug.Error(fmt.Errorf("read from %s: %w", remote, err))
			}
			return
		}
	}
}
