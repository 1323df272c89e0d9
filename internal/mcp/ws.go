// File: internal/mcp/ws.go
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Constants for WebSocket timeouts and limits (based on Gorilla WebSocket examples).
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Scripts for execute_js travel in a single frame.
	maxMessageSize = 1 << 20
	sendChannelSize = 256
)

// checkOrigin accepts non-browser clients and pages served from the host
// itself. Other origins must not drive the webview.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// wsClient is one connection on the websocket command channel. Each text
// frame in is a CommandRequest; each frame out is a CommandResponse. Commands
// run concurrently, so responses may arrive out of order and are matched by
// request_id.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	send   chan schemas.CommandResponse
	// done is closed when the read side stops, stopped when the write side
	// does.
	done    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

// handleCommands upgrades the connection and serves it until either side
// closes it.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade already wrote the HTTP error.
		s.logger.Warn("Failed to upgrade connection to WebSocket", zap.Error(err))
		return
	}
	s.logger.Info("WebSocket connection established.", zap.String("remoteAddr", r.RemoteAddr))

	client := &wsClient{
		server:  s,
		conn:    conn,
		send:    make(chan schemas.CommandResponse, sendChannelSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if !s.addClient(client) {
		conn.Close()
		return
	}
	defer s.removeClient(client)

	ctx, cancel := context.WithCancel(r.Context())
	go client.writePump()

	client.readPump(ctx)
	close(client.done)
	cancel()
	client.wg.Wait()
	<-client.stopped
	s.logger.Debug("WebSocket connection finished.", zap.String("remoteAddr", r.RemoteAddr))
}

// readPump reads requests until the connection fails or is closed.
func (c *wsClient) readPump(ctx context.Context) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.server.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req schemas.CommandRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			// A frame that is not a request is answered. The connection
			// itself is still readable.
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.queue(schemas.CommandResponse{Response: schemas.Fail(fmt.Errorf("invalid request: %w", err))})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			} else {
				c.server.logger.Info("WebSocket connection closed.")
			}
			return
		}

		c.server.logger.Debug("Received command from client", zap.String("command", req.Command), zap.String("request_id", req.RequestID))
		// Dispatch off the read loop so pongs and close frames stay responsive.
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			resp := c.server.dispatcher.Dispatch(ctx, req)
			c.queue(schemas.CommandResponse{Response: resp, RequestID: req.RequestID})
		}()
	}
}

// queue hands a response to the write pump unless the connection is gone.
func (c *wsClient) queue(resp schemas.CommandResponse) {
	select {
	case c.send <- resp:
	case <-c.done:
	case <-c.stopped:
	}
}

// writePump owns every write to the connection, including pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.stopped)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.server.logger.Error("Failed to set write deadline", zap.Error(err))
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Warn("Error writing JSON message to WebSocket", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.server.logger.Error("Failed to set write deadline for PING", zap.Error(err))
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.server.logger.Warn("Error sending PING message to WebSocket", zap.Error(err))
				return
			}

		case <-c.done:
			return
		}
	}
}
