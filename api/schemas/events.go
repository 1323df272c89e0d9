package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// -- Event Channel Contract --

// Event names understood by the webview side of the bridge. Each response is
// emitted on the same name with ResponseSuffix appended.
const (
	EventGetDOMContent      = "get-dom-content"
	EventGetLocalStorage    = "get-local-storage"
	EventExecuteJS          = "execute-js"
	EventGetElementPosition = "get-element-position"
	EventSendTextToElement  = "send-text-to-element"

	ResponseSuffix = "-response"
)

// GuestEvents lists every request event the webview side listens for.
var GuestEvents = []string{
	EventGetDOMContent,
	EventGetLocalStorage,
	EventExecuteJS,
	EventGetElementPosition,
	EventSendTextToElement,
}

// ResponseEvent returns the response channel name for a request event.
func ResponseEvent(name string) string {
	return name + ResponseSuffix
}

// LooseString accepts any JSON value. Strings are unquoted; everything else
// keeps its compact JSON text. Storage keys and values use it so a client may
// send either "a string" or a structured object.
type LooseString string

func (s *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return fmt.Errorf("invalid JSON value: %w", err)
	}
	*s = LooseString(buf.String())
	return nil
}

// StorageAction is the closed set of storage operations.
type StorageAction string

const (
	StorageGet    StorageAction = "get"
	StorageSet    StorageAction = "set"
	StorageRemove StorageAction = "remove"
	StorageClear  StorageAction = "clear"
	StorageKeys   StorageAction = "keys"
)

// StorageRequest is the get-local-storage payload.
type StorageRequest struct {
	Action StorageAction `json:"action"`
	Key    *LooseString  `json:"key,omitempty"`
	Value  *LooseString  `json:"value,omitempty"`
}

// PositionRequest is the get-element-position payload.
type PositionRequest struct {
	SelectorType   string `json:"selectorType"`
	SelectorValue  string `json:"selectorValue"`
	ShouldClick    bool   `json:"shouldClick,omitempty"`
	RawCoordinates bool   `json:"rawCoordinates,omitempty"`
}

// TypeRequest is the send-text-to-element payload. DelayMs is optional; a nil
// value means the configured default.
type TypeRequest struct {
	SelectorType  string `json:"selectorType"`
	SelectorValue string `json:"selectorValue"`
	Text          string `json:"text"`
	DelayMs       *int   `json:"delayMs,omitempty"`
}

// -- Result Schemas --

// ScriptResult is the execute-js result on both envelope arms.
type ScriptResult struct {
	Result string `json:"result"`
	Type   string `json:"type"`
	Error  string `json:"error,omitempty"`
}

// PositionedElement describes the element found by a position lookup.
type PositionedElement struct {
	Tag         string `json:"tag"`
	Classes     string `json:"classes"`
	ID          string `json:"id"`
	Text        string `json:"text"`
	Placeholder string `json:"placeholder,omitempty"`
}

// ClickResult is the inline outcome of the optional synthetic click.
type ClickResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PositionDebug exposes the raw geometry behind the reported point.
type PositionDebug struct {
	ElementRect    Rect          `json:"elementRect"`
	ViewportCenter Point         `json:"viewportCenter"`
	DocumentCenter Point         `json:"documentCenter"`
	Window         WindowMetrics `json:"window"`
	Diagnostics    []string      `json:"diagnostics,omitempty"`
}

// PositionResult is the get-element-position result.
type PositionResult struct {
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	Element     PositionedElement `json:"element"`
	Clicked     bool              `json:"clicked"`
	ClickResult *ClickResult      `json:"clickResult,omitempty"`
	Debug       PositionDebug     `json:"debug"`
}

// TypedElement describes the element that received text.
type TypedElement struct {
	Tag        string `json:"tag"`
	Classes    string `json:"classes"`
	ID         string `json:"id"`
	Type       string `json:"type,omitempty"`
	Text       string `json:"text"`
	IsEditable bool   `json:"isEditable"`
}

// TypeResult is the send-text-to-element result.
type TypeResult struct {
	Element     TypedElement `json:"element"`
	Strategy    string       `json:"strategy,omitempty"`
	Corrected   bool         `json:"corrected,omitempty"`
	Diagnostics []string     `json:"diagnostics,omitempty"`
}
