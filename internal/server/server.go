// Package server accepts client connections on the local IPC endpoint and
// drives the request/response protocol: one request per connection, zero or
// more informational responses, then exactly one final response.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/pipeproto"
	"maxbackup/internal/supervisor"
)

// DefaultPipeName is the well-known endpoint name.
const DefaultPipeName = "MaxBackupPipe"

// Server serves the pipe protocol on a listener. Each connection is handled
// on its own goroutine so one slow client cannot block others.
type Server struct {
	listener net.Listener
	sup      *supervisor.Supervisor
	resolver backup.IdentityResolver
	logger   backup.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// New creates a server on the given listener. timeout applies per read or
// write on each connection.
func New(listener net.Listener, sup *supervisor.Supervisor, resolver backup.IdentityResolver, logger backup.Logger, timeout time.Duration) *Server {
	return &Server{
		listener: listener,
		sup:      sup,
		resolver: resolver,
		logger:   logger,
		timeout:  timeout,
	}
}

// Serve accepts connections until the listener is closed. It blocks; run it
// on its own goroutine and call Close to stop. Cancelling ctx does not
// interrupt a pending Accept; once Accept fails, Serve waits for in-flight
// conversations and returns nil if ctx was cancelled or the listener closed.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(conn)
		}()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

// ServeConn handles one client conversation and closes the connection.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request handler panicked", "panic", fmt.Sprint(r))
			s.send(conn, pipeproto.Error("internal error"))
		}
	}()

	var req pipeproto.Request
	if err := pipeproto.ReadMessage(conn, s.timeout, &req); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.logger.Warn("malformed request", "error", err)
		s.send(conn, pipeproto.Error(fmt.Sprintf("malformed request: %v", err)))
		return
	}

	// The display name is for logging only; a missing translation is not
	// an error.
	username := req.SID
	if s.resolver != nil {
		if profile, ok := s.resolver.Resolve(req.SID); ok {
			username = profile.DisplayName
		}
	}

	action := pipeproto.NormalizeAction(req.Action)
	s.logger.Info("request received", "action", action, "sid", req.SID, "user", username)

	switch action {
	case pipeproto.ActionRegister:
		if !s.send(conn, pipeproto.Info("Validating configuration...")) {
			return
		}
		if !s.send(conn, pipeproto.Info(fmt.Sprintf("Config path: %s", req.ConfigPath))) {
			return
		}
		s.send(conn, s.sup.Register(req.SID, username, req.ConfigPath))

	case pipeproto.ActionUnregister:
		if !s.send(conn, pipeproto.Info("Stopping worker...")) {
			return
		}
		s.send(conn, s.sup.Unregister(req.SID, username))

	case pipeproto.ActionStatus:
		s.send(conn, s.sup.Status(req.SID, username))

	case pipeproto.ActionHistory:
		s.send(conn, s.sup.History(req.SID))

	default:
		s.send(conn, pipeproto.Error(fmt.Sprintf("Unknown action: %s", req.Action)))
	}
}

// send writes one response, reporting whether the connection is still
// usable.
func (s *Server) send(conn net.Conn, resp pipeproto.Response) bool {
	if err := pipeproto.WriteMessage(conn, s.timeout, resp); err != nil {
		s.logger.Warn("cannot write response", "error", err)
		return false
	}
	return true
}
