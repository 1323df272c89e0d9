package schemas

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// -- Host Command Protocol --

// Commands accepted by the host side (socket, websocket and MCP surfaces).
const (
	CommandPing               = "ping"
	CommandGetDOM             = "get_dom"
	CommandManageLocalStorage = "manage_local_storage"
	CommandExecuteJS          = "execute_js"
	CommandGetElementPosition = "get_element_position"
	CommandSendTextToElement  = "send_text_to_element"
)

// DefaultWindowLabel is used when a request does not name a window.
const DefaultWindowLabel = "main"

// DefaultDelayMs is the inter-keystroke delay when a request omits delay_ms.
const DefaultDelayMs = 20

// CommandRequest is one framed request on the socket or websocket.
type CommandRequest struct {
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// CommandResponse is a Response optionally tagged with the caller's request id.
type CommandResponse struct {
	Response
	RequestID string `json:"request_id,omitempty"`
}

// WindowTarget carries the window a command addresses.
type WindowTarget struct {
	WindowLabel string `json:"window_label,omitempty"`
}

// Label returns the window label, defaulting to the main window.
func (w WindowTarget) Label() string {
	if strings.TrimSpace(w.WindowLabel) == "" {
		return DefaultWindowLabel
	}
	return w.WindowLabel
}

// ParseWindowLabel accepts the get_dom payload, which may be either a bare
// string or an object with window_label.
func ParseWindowLabel(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultWindowLabel, nil
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		if label == "" {
			return DefaultWindowLabel, nil
		}
		return label, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("invalid payload format for get_dom: expected string or object with window_label, got %s", raw)
	}
	v, ok := obj["window_label"]
	if !ok {
		return "", errors.New("missing or invalid window_label in payload object")
	}
	if err := json.Unmarshal(v, &label); err != nil || label == "" {
		return "", errors.New("missing or invalid window_label in payload object")
	}
	return label, nil
}

// ParseDOMFormat returns the optional format of an object get_dom payload.
// A bare string payload or a missing field means raw HTML.
func ParseDOMFormat(raw json.RawMessage) string {
	var obj struct {
		Format string `json:"format"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	return obj.Format
}

// StorageCommand is the manage_local_storage payload.
type StorageCommand struct {
	WindowTarget
	Action StorageAction `json:"action"`
	Key    *LooseString  `json:"key,omitempty"`
	Value  *LooseString  `json:"value,omitempty"`
}

// ExecuteJSCommand is the execute_js payload.
type ExecuteJSCommand struct {
	WindowTarget
	Code string `json:"code"`
}

// PositionCommand is the get_element_position payload.
type PositionCommand struct {
	WindowTarget
	SelectorType   string `json:"selector_type"`
	SelectorValue  string `json:"selector_value"`
	ShouldClick    bool   `json:"should_click,omitempty"`
	RawCoordinates bool   `json:"raw_coordinates,omitempty"`
}

// TypeCommand is the send_text_to_element payload.
type TypeCommand struct {
	WindowTarget
	SelectorType  string `json:"selector_type"`
	SelectorValue string `json:"selector_value"`
	Text          string `json:"text"`
	DelayMs       *int   `json:"delay_ms,omitempty"`
}

// Delay returns delay_ms with the documented default applied.
func (c TypeCommand) Delay() int {
	if c.DelayMs == nil {
		return DefaultDelayMs
	}
	return *c.DelayMs
}
