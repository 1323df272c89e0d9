// File: internal/mcp/server.go
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP surface of the host: MCP over streamable HTTP at /mcp,
// the websocket command channel at /ws, the JSON command API at
// /api/v1/command and /healthz.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	dispatcher Dispatcher
	handlers   *Handlers
	mcpServer  *mcpsdk.Server
	upgrader   websocket.Upgrader
	router     chi.Router

	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	closing  bool
	addr     net.Addr
	ready    chan struct{}
	readyOne sync.Once
}

// NewServer wires the routes. Nothing listens until Serve.
func NewServer(cfg config.ServerConfig, dispatcher Dispatcher, logger *zap.Logger, version string) *Server {
	logger = logger.Named("mcp_server")
	if cfg.JWTSecret == "" {
		logger.Warn("No JWT secret configured. The HTTP surface accepts unauthenticated requests.")
	}
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		handlers:   NewHandlers(logger, dispatcher, cfg.JWTSecret),
		mcpServer:  NewMCPServer(dispatcher, version),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[*wsClient]struct{}),
		ready:   make(chan struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	s.handlers.RegisterRoutes(r)

	// Long lived routes. No request timeout here.
	r.Group(func(r chi.Router) {
		r.Use(s.handlers.RequireToken)
		r.Get("/ws", s.handleCommands)
		r.Handle("/mcp", mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
			return s.mcpServer
		}, nil))
	})
	return r
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Ready is closed once Serve is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr is the bound listen address. It is nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully. Websocket clients are disconnected on shutdown.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	// Hijacked websocket connections are invisible to Shutdown.
	httpServer.RegisterOnShutdown(s.closeClients)

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.readyOne.Do(func() { close(s.ready) })
	s.logger.Info("HTTP server listening.", zap.String("address", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		s.closeClients()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		httpServer.Close()
	}
	<-errCh
	s.logger.Info("HTTP server stopped.")
	return nil
}

func (s *Server) addClient(c *wsClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) removeClient(c *wsClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for c := range s.clients {
		c.conn.Close()
	}
}

// corsMiddleware lets tooling served from another origin call the JSON API
// with a bearer token. Credentials are never allowed.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
