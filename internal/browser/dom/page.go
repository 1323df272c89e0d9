// browser/dom/page.go
package dom

import (
	"context"
	"strings"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// Ref is an opaque handle to a live DOM node. A ref is only meaningful to
// the Page that issued it and only for the duration of one request.
type Ref string

// Element is a snapshot of the attributes the engine reasons about. It is
// taken once per query; nothing in it tracks later DOM mutation.
type Element struct {
	Ref Ref `json:"ref"`
	// Index is the position in document order among the returned elements.
	Index int `json:"index"`
	// Parent is the Index of the closest returned ancestor, or -1.
	Parent      int    `json:"parent"`
	Tag         string `json:"tag"`
	ID          string `json:"id"`
	Classes     string `json:"classes"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Placeholder string `json:"placeholder"`
	Title       string `json:"title"`
	AriaLabel   string `json:"ariaLabel"`
	Editable    bool   `json:"editable"`
}

// nonTextInputTypes are input types that never accept typed text.
var nonTextInputTypes = map[string]bool{
	"button": true, "checkbox": true, "color": true, "file": true, "hidden": true,
	"image": true, "radio": true, "range": true, "reset": true, "submit": true,
}

// IsTextControl reports whether the element is a native text input or textarea.
func (e Element) IsTextControl() bool {
	switch strings.ToLower(e.Tag) {
	case "textarea":
		return true
	case "input":
		return !nonTextInputTypes[strings.ToLower(e.Type)]
	}
	return false
}

// AcceptsPlaceholder reports whether placeholder matching applies to the element.
func (e Element) AcceptsPlaceholder() bool {
	t := strings.ToLower(e.Tag)
	return t == "input" || t == "textarea"
}

// Locator finds elements.
type Locator interface {
	// Query returns candidate elements for a selector in document order. For
	// SelectorText with a non-blank value it returns the elements whose text,
	// placeholder, title or aria-label contains the value case-insensitively,
	// the elements whose placeholder the value contains, and every script,
	// style, noscript, template and head element, with their text blanked
	// unless they match. A blank text value yields nothing.
	Query(ctx context.Context, kind schemas.SelectorKind, value string) ([]Element, error)
	// Describe snapshots a single element.
	Describe(ctx context.Context, ref Ref) (Element, error)
	// QuerySelector finds the first descendant of ref matching css.
	QuerySelector(ctx context.Context, ref Ref, css string) (Ref, bool, error)
	// HasAttribute reports whether ref carries the named attribute.
	HasAttribute(ctx context.Context, ref Ref, name string) (bool, error)
}

// Geometry reads live layout.
type Geometry interface {
	BoundingRect(ctx context.Context, ref Ref) (schemas.Rect, error)
	Window(ctx context.Context) (schemas.WindowMetrics, error)
}

// Input moves focus and delivers synthetic events.
type Input interface {
	Focus(ctx context.Context, ref Ref) error
	// ActiveElement returns the currently focused element, if any.
	ActiveElement(ctx context.Context) (Ref, bool, error)
	// Dispatch delivers ev to ref. The result is false when a cancelable
	// event had preventDefault called on it.
	Dispatch(ctx context.Context, ref Ref, ev Event) (bool, error)
	// ExecCommand runs a document editing command against the current selection.
	ExecCommand(ctx context.Context, command, arg string) (bool, error)
}

// Content reads and writes element state.
type Content interface {
	// Value reads the value property of a form control.
	Value(ctx context.Context, ref Ref) (string, error)
	// SetValue writes value through the prototype's native setter so that
	// frameworks tracking the property observe the change.
	SetValue(ctx context.Context, ref Ref, value string) error
	// TextContent reads the text content of any node.
	TextContent(ctx context.Context, ref Ref) (string, error)
	// SetTextContent replaces all children with a single text node.
	SetTextContent(ctx context.Context, ref Ref, text string) error
	// SetInnerHTML replaces all children with parsed markup.
	SetInnerHTML(ctx context.Context, ref Ref, html string) error
	// InsertTextAtEnd moves the caret to the end of ref, inserts a text
	// node there and places the caret after it.
	InsertTextAtEnd(ctx context.Context, ref Ref, text string) error
	// SelectEnd collapses the document selection to the end of ref.
	SelectEnd(ctx context.Context, ref Ref) error
}

// Scripting evaluates arbitrary script in the page.
type Scripting interface {
	Evaluate(ctx context.Context, expression string) (EvalResult, error)
}

// Document reads whole-document state.
type Document interface {
	// DocumentHTML returns the document element's outer HTML and the current
	// document.readyState.
	DocumentHTML(ctx context.Context) (html string, readyState string, err error)
}

// Storage is the page's origin-scoped local storage.
type Storage interface {
	StorageItems(ctx context.Context) ([]StorageItem, error)
	StorageGet(ctx context.Context, key string) (string, bool, error)
	StorageSet(ctx context.Context, key, value string) error
	StorageRemove(ctx context.Context, key string) error
	StorageClear(ctx context.Context) error
}

// StorageItem is one key/value pair in storage order.
type StorageItem struct {
	Key   string
	Value string
}

// Page is the full set of primitives the engine needs from a webview.
// Implementations must read state fresh on every call.
type Page interface {
	Locator
	Geometry
	Input
	Content
	Scripting
	Document
	Storage
}
