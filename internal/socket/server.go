// Package socket serves the host command protocol on a local Unix socket.
// Each connection carries newline delimited JSON: one CommandRequest per
// line in, one CommandResponse per line out, in order.
package socket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/config"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// maxRequestSize bounds a single request line. Scripts sent with execute_js
// are the largest legitimate payloads.
const maxRequestSize = 16 << 20

// Dispatcher runs one host command. bridge.Host satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req schemas.CommandRequest) schemas.Response
}

// Server is the Unix socket front end of the host.
type Server struct {
	logger     *zap.Logger
	path       string
	dispatcher Dispatcher
	limiter    *rate.Limiter
	maxLine    int

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	ready  chan struct{}
}

// NewServer validates the configuration and prepares a server. A leading
// "~" in the socket path is expanded.
func NewServer(cfg config.SocketConfig, dispatcher Dispatcher, logger *zap.Logger) (*Server, error) {
	path := cfg.Path
	if path == "" {
		path = config.DefaultSocketPath()
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand socket path %q: %w", path, err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Server{
		logger:     logger.Named("socket_server"),
		path:       expanded,
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(limit, burst),
		maxLine:    maxRequestSize,
		conns:      make(map[net.Conn]struct{}),
		ready:      make(chan struct{}),
	}, nil
}

// Path is the socket file the server listens on.
func (s *Server) Path() string { return s.path }

// Ready is closed once the socket accepts connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve listens until ctx is cancelled. The socket file is removed on exit.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	// A socket left behind by a crashed run would make Listen fail.
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", s.path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.path, err)
	}
	defer os.Remove(s.path)
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("restrict socket permissions: %w", err)
	}

	s.logger.Info("Socket server listening.", zap.String("path", s.path))
	close(s.ready)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		s.closeConns()
		return nil
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			if !s.track(conn) {
				conn.Close()
				return nil
			}
			g.Go(func() error {
				defer s.untrack(conn)
				s.handle(gctx, conn)
				return nil
			})
		}
	})

	err = g.Wait()
	s.logger.Info("Socket server stopped.", zap.String("path", s.path))
	return err
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.logger.Debug("Client connected.")

	scanner := bufio.NewScanner(conn)
	// The initial capacity also caps the line length, so it must not exceed maxLine.
	scanner.Buffer(make([]byte, 0, min(64*1024, s.maxLine)), s.maxLine)
	w := bufio.NewWriter(conn)
	enc := codec.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.serveLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("Failed to encode response.", zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			s.logger.Debug("Client went away before the response was written.", zap.Error(err))
			return
		}
	}
	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		// The rest of the line cannot be framed, so the connection ends here,
		// but the request still gets its answer.
		s.logger.Warn("Request too large, closing connection.", zap.Int("limit", s.maxLine))
		resp := schemas.CommandResponse{Response: schemas.Fail(fmt.Errorf("invalid request: larger than %d bytes", s.maxLine))}
		if err := enc.Encode(resp); err == nil {
			w.Flush()
		}
		return
	}
	if err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("Connection read failed.", zap.Error(err))
	}
}

func (s *Server) serveLine(ctx context.Context, line []byte) schemas.CommandResponse {
	var req schemas.CommandRequest
	if err := codec.Unmarshal(line, &req); err != nil {
		return schemas.CommandResponse{Response: schemas.Fail(fmt.Errorf("invalid request: %w", err))}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return schemas.CommandResponse{Response: schemas.Fail(fmt.Errorf("rate limited: %w", err)), RequestID: req.RequestID}
	}
	resp := s.dispatcher.Dispatch(ctx, req)
	if !resp.Success {
		s.logger.Info("Command failed.", zap.String("command", req.Command), zap.String("error", resp.Error))
	}
	return schemas.CommandResponse{Response: resp, RequestID: req.RequestID}
}

// track registers a live connection. It reports false once shutdown began.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.conns {
		c.Close()
	}
}
