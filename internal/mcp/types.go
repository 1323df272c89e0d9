// File: internal/mcp/types.go
package mcp

import (
	"context"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Dispatcher runs one host command and always answers with an envelope.
// bridge.Host satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req schemas.CommandRequest) schemas.Response
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, req schemas.CommandRequest) schemas.Response

func (f DispatcherFunc) Dispatch(ctx context.Context, req schemas.CommandRequest) schemas.Response {
	return f(ctx, req)
}

// getDOMArgs is the get_dom tool input. The host command also accepts a bare
// string label, which MCP arguments cannot express.
type getDOMArgs struct {
	WindowLabel string `json:"window_label,omitempty"`
	Format      string `json:"format,omitempty"`
}
