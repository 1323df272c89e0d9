// internal/browser/session/page.go
package session

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// -- dom.Locator --

func (s *Session) Query(ctx context.Context, kind schemas.SelectorKind, value string) ([]dom.Element, error) {
	var els []dom.Element
	if err := s.call(ctx, "query", &els, jsQuery, string(kind), value); err != nil {
		return nil, err
	}
	return els, nil
}

func (s *Session) Describe(ctx context.Context, ref dom.Ref) (dom.Element, error) {
	var el dom.Element
	err := s.call(ctx, "describe", &el, jsDescribe, ref)
	return el, err
}

func (s *Session) QuerySelector(ctx context.Context, ref dom.Ref, css string) (dom.Ref, bool, error) {
	var found string
	if err := s.call(ctx, "query selector", &found, jsQuerySelector, ref, css); err != nil {
		return "", false, err
	}
	return dom.Ref(found), found != "", nil
}

func (s *Session) HasAttribute(ctx context.Context, ref dom.Ref, name string) (bool, error) {
	var has bool
	err := s.call(ctx, "has attribute", &has, jsHasAttribute, ref, name)
	return has, err
}

// -- dom.Geometry --

func (s *Session) BoundingRect(ctx context.Context, ref dom.Ref) (schemas.Rect, error) {
	var r schemas.Rect
	err := s.call(ctx, "bounding rect", &r, jsBoundingRect, ref)
	return r, err
}

func (s *Session) Window(ctx context.Context) (schemas.WindowMetrics, error) {
	var m schemas.WindowMetrics
	err := s.call(ctx, "window metrics", &m, jsWindow)
	return m, err
}

// -- dom.Input --

func (s *Session) Focus(ctx context.Context, ref dom.Ref) error {
	return s.call(ctx, "focus", nil, jsFocus, ref)
}

func (s *Session) ActiveElement(ctx context.Context) (dom.Ref, bool, error) {
	var ref string
	if err := s.call(ctx, "active element", &ref, jsActiveElement); err != nil {
		return "", false, err
	}
	return dom.Ref(ref), ref != "", nil
}

func (s *Session) Dispatch(ctx context.Context, ref dom.Ref, ev dom.Event) (bool, error) {
	var notCancelled bool
	if err := s.call(ctx, "dispatch "+ev.Type, &notCancelled, jsDispatch, ref, ev); err != nil {
		return false, err
	}
	return notCancelled, nil
}

func (s *Session) ExecCommand(ctx context.Context, command, arg string) (bool, error) {
	var ok bool
	err := s.call(ctx, "execCommand "+command, &ok, jsExecCommand, command, arg)
	return ok, err
}

// -- dom.Content --

func (s *Session) Value(ctx context.Context, ref dom.Ref) (string, error) {
	var v string
	err := s.call(ctx, "read value", &v, jsValue, ref)
	return v, err
}

func (s *Session) SetValue(ctx context.Context, ref dom.Ref, value string) error {
	return s.call(ctx, "set value", nil, jsSetValue, ref, value)
}

func (s *Session) TextContent(ctx context.Context, ref dom.Ref) (string, error) {
	var text string
	err := s.call(ctx, "read text", &text, jsTextContent, ref)
	return text, err
}

func (s *Session) SetTextContent(ctx context.Context, ref dom.Ref, text string) error {
	return s.call(ctx, "set text", nil, jsSetTextContent, ref, text)
}

func (s *Session) SetInnerHTML(ctx context.Context, ref dom.Ref, html string) error {
	return s.call(ctx, "set inner html", nil, jsSetInnerHTML, ref, html)
}

func (s *Session) InsertTextAtEnd(ctx context.Context, ref dom.Ref, text string) error {
	return s.call(ctx, "insert text", nil, jsInsertTextAtEnd, ref, text)
}

func (s *Session) SelectEnd(ctx context.Context, ref dom.Ref) error {
	return s.call(ctx, "select end", nil, jsSelectEnd, ref)
}

// -- dom.Scripting --

// Evaluate runs arbitrary script. Unlike the primitives it does not go
// through the registry, and script errors come back as *dom.EvalError.
func (s *Session) Evaluate(ctx context.Context, expression string) (dom.EvalResult, error) {
	if s.target.Err() != nil {
		return dom.EvalResult{}, fmt.Errorf("evaluate: %w", ErrClosed)
	}
	return s.exec.remote(ctx, expression)
}

// -- dom.Document --

func (s *Session) DocumentHTML(ctx context.Context) (string, string, error) {
	var out []string
	if err := s.call(ctx, "serialize document", &out, jsDocumentHTML); err != nil {
		return "", "", err
	}
	if len(out) != 2 {
		return "", "", fmt.Errorf("serialize document: unexpected result of length %d", len(out))
	}
	return out[0], out[1], nil
}

// -- dom.Storage --

func (s *Session) StorageItems(ctx context.Context) ([]dom.StorageItem, error) {
	var pairs [][2]string
	if err := s.call(ctx, "list storage", &pairs, jsStorageItems); err != nil {
		return nil, err
	}
	items := make([]dom.StorageItem, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, dom.StorageItem{Key: p[0], Value: p[1]})
	}
	return items, nil
}

func (s *Session) StorageGet(ctx context.Context, key string) (string, bool, error) {
	var v *string
	if err := s.call(ctx, "read storage", &v, jsStorageGet, key); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (s *Session) StorageSet(ctx context.Context, key, value string) error {
	return s.call(ctx, "write storage", nil, jsStorageSet, key, value)
}

func (s *Session) StorageRemove(ctx context.Context, key string) error {
	return s.call(ctx, "remove storage", nil, jsStorageRemove, key)
}

func (s *Session) StorageClear(ctx context.Context) error {
	return s.call(ctx, "clear storage", nil, jsStorageClear)
}
