// File: internal/mcp/tools.go
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// ImplementationName is what the MCP server reports to clients.
const ImplementationName = "webpilot"

// NewMCPServer builds an MCP server exposing every host command as a tool.
func NewMCPServer(d Dispatcher, version string) *mcpsdk.Server {
	srv := mcpsdk.NewServer(&mcpsdk.Implementation{Name: ImplementationName, Version: version}, nil)
	RegisterTools(srv, d)
	return srv
}

func inputSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

var windowLabelProp = stringProp("Webview window label. Defaults to main.")

var selectorProps = map[string]any{
	"selector_type":  map[string]any{"type": "string", "enum": selectorKinds(), "description": "How selector_value is interpreted."},
	"selector_value": stringProp("The element id, class list, tag name or visible text."),
}

func selectorKinds() []string {
	kinds := make([]string, len(schemas.SelectorKinds))
	for i, k := range schemas.SelectorKinds {
		kinds[i] = string(k)
	}
	return kinds
}

func withSelector(extra map[string]any) map[string]any {
	props := map[string]any{"window_label": windowLabelProp}
	for k, v := range selectorProps {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// RegisterTools adds the host command tools to srv.
func RegisterTools(srv *mcpsdk.Server, d Dispatcher) {
	register(srv, d, &mcpsdk.Tool{
		Name:        schemas.CommandPing,
		Description: "Check that the automation host is reachable.",
		InputSchema: inputSchema(map[string]any{}),
	}, nil)

	register(srv, d, &mcpsdk.Tool{
		Name:        schemas.CommandGetDOM,
		Description: "Return the serialized document of a webview window as html, sanitized html or markdown.",
		InputSchema: inputSchema(map[string]any{
			"window_label": windowLabelProp,
			"format":       map[string]any{"type": "string", "enum": []string{"html", "sanitized", "markdown"}},
		}),
	}, getDOMPayload)

	register(srv, d, &mcpsdk.Tool{
		Name:        schemas.CommandManageLocalStorage,
		Description: "Read or modify the localStorage of a webview window.",
		InputSchema: inputSchema(map[string]any{
			"window_label": windowLabelProp,
			"action":       map[string]any{"type": "string", "enum": []string{"get", "set", "remove", "clear", "keys"}},
			"key":          map[string]any{"description": "Item key. Omit with get to list every item."},
			"value":        map[string]any{"description": "Value for set. Non-string values are stored as JSON."},
		}, "action"),
	}, nil)

	register(srv, d, &mcpsdk.Tool{
		Name:        schemas.CommandExecuteJS,
		Description: "Evaluate JavaScript in a webview window and return its result and type.",
		InputSchema: inputSchema(map[string]any{
			"window_label": windowLabelProp,
			"code":         stringProp("Script source. A trailing expression is returned."),
		}, "code"),
	}, nil)

	register(srv, d, &mcpsdk.Tool{
		Name:        schemas.CommandGetElementPosition,
		Description: "Locate an element and return its window coordinates, optionally clicking it.",
		InputSchema: inputSchema(withSelector(map[string]any{
			"should_click":    map[string]any{"type": "boolean"},
			"raw_coordinates": map[string]any{"type": "boolean", "description": "Return viewport coordinates without window chrome offsets."},
		}), "selector_type", "selector_value"),
	}, nil)

	register(srv, d, &mcpsdk.Tool{
		Name:        schemas.CommandSendTextToElement,
		Description: "Type text into an input, textarea or rich text editor.",
		InputSchema: inputSchema(withSelector(map[string]any{
			"text":     stringProp("Text to type."),
			"delay_ms": map[string]any{"type": "integer", "minimum": 0, "description": "Delay between keystrokes. Defaults to 20."},
		}), "selector_type", "selector_value", "text"),
	}, nil)
}

// register binds one tool to the command of the same name. payload, when
// set, rewrites the tool arguments into the command payload.
func register(srv *mcpsdk.Server, d Dispatcher, tool *mcpsdk.Tool, payload func(json.RawMessage) (json.RawMessage, error)) {
	command := tool.Name
	srv.AddTool(tool, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := req.Params.Arguments
		if payload != nil {
			var err error
			if args, err = payload(args); err != nil {
				var res mcpsdk.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		resp := d.Dispatch(ctx, schemas.CommandRequest{Command: command, Payload: args})
		return toolResult(resp), nil
	})
}

func getDOMPayload(args json.RawMessage) (json.RawMessage, error) {
	var in getDOMArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, err
		}
	}
	if in.WindowLabel == "" {
		in.WindowLabel = schemas.DefaultWindowLabel
	}
	return json.Marshal(in)
}

func toolResult(resp schemas.Response) *mcpsdk.CallToolResult {
	var res mcpsdk.CallToolResult
	if !resp.Success {
		res.SetError(errors.New(resp.Error))
		if resp.Data != nil {
			res.Content = append(res.Content, &mcpsdk.TextContent{Text: dataText(resp.Data)})
		}
		return &res
	}
	res.Content = []mcpsdk.Content{&mcpsdk.TextContent{Text: dataText(resp.Data)}}
	return &res
}

// dataText renders envelope data as tool text. Strings such as documents
// are passed through unquoted.
func dataText(data any) string {
	switch v := data.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
