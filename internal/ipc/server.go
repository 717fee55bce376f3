package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// MessageHandler processes a single request message and returns a response.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *Message) (*Message, error)
}

// ServerConfig configures the IPC server.
type ServerConfig struct {
	SocketPath   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns sensible defaults rooted in the data
// directory.
func DefaultServerConfig(dataDir string) ServerConfig {
	return ServerConfig{
		SocketPath:   filepath.Join(dataDir, "reviewd.sock"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server accepts client connections on a unix socket and dispatches
// request messages to a handler.
type Server struct {
	cfg      ServerConfig
	handler  MessageHandler
	log      *slog.Logger
	listener net.Listener

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer creates an IPC server. It does not listen until Start.
func NewServer(cfg ServerConfig, handler MessageHandler, log *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		handler: handler,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	// Remove a stale socket left by a previous run.
	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.SocketPath, err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("restrict socket permissions: %w", err)
	}

	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.Info("ipc server listening", "socket", s.cfg.SocketPath)
	return nil
}

// Stop closes the listener, disconnects clients, and removes the socket.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	// Close active connections so serveConn goroutines blocked in a read
	// return immediately instead of waiting out their read deadline.
	s.connMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()

	if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove socket: %w", err)
	}
	return nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		s.connMu.Lock()
		s.conns[conn] = struct{}{}
		s.connMu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// serveConn handles one client connection, processing requests until the
// client disconnects or the server shuts down.
func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		msg, err := ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("connection read failed", "error", err)
			}
			return
		}

		resp, err := s.handler.HandleMessage(s.ctx, msg)
		if err != nil {
			resp = errorMessage(msg.Header.RequestID, ErrInternalError, err.Error())
		}
		if resp == nil {
			continue
		}

		if s.cfg.WriteTimeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := resp.Write(conn); err != nil {
			s.log.Debug("connection write failed", "error", err)
			return
		}
	}
}

func errorMessage(requestID uint32, code int, text string) *Message {
	msg, err := Encode(MsgError, requestID, ErrorResponse{Code: code, Message: text})
	if err != nil {
		// ErrorResponse marshals from plain fields; this cannot fail.
		return NewMessage(MsgError, requestID, nil)
	}
	return msg
}
