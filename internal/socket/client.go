package socket

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// RawCommandResponse is a decoded response line with its data left raw.
type RawCommandResponse struct {
	schemas.RawResponse
	RequestID string `json:"request_id,omitempty"`
}

// Client sends commands over one socket connection. It is not safe for
// concurrent use.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand socket path %q: %w", path, err)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", expanded)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", expanded, err)
	}
	scanner := bufio.NewScanner(conn)
	// Responses carry whole documents.
	scanner.Buffer(make([]byte, 64*1024), 256<<20)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Call sends one request and waits for its response. A cancelled call
// leaves the client closed.
func (c *Client) Call(ctx context.Context, req schemas.CommandRequest) (RawCommandResponse, error) {
	// Cancelling ctx closes the connection, which unblocks the read.
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	line, err := codec.Marshal(req)
	if err != nil {
		return RawCommandResponse{}, fmt.Errorf("encode request: %w", err)
	}
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		return RawCommandResponse{}, wrapCtx(ctx, fmt.Errorf("send request: %w", err))
	}
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		if err == nil {
			err = fmt.Errorf("connection closed by server")
		}
		return RawCommandResponse{}, wrapCtx(ctx, fmt.Errorf("read response: %w", err))
	}
	var resp RawCommandResponse
	if err := codec.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return RawCommandResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

func wrapCtx(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w (%v)", ctx.Err(), err)
	}
	return err
}
