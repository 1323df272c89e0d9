// Package domtest provides an in-memory dom.Page built from HTML fixtures.
//
// It models exactly what the engine relies on: document order, text content,
// form control values, contenteditable inheritance, focus, a coarse selection
// for execCommand, and event delivery with veto support. Layout comes from a
// data-rect="left top width height" attribute on the fixture element.
package domtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// ErrUnknownRef is returned for refs this page never issued.
var ErrUnknownRef = errors.New("domtest: unknown element ref")

// Dispatched records one delivered synthetic event.
type Dispatched struct {
	Ref   dom.Ref
	Event dom.Event
}

// EventHook observes a dispatched event. Returning true cancels it.
type EventHook func(p *Page, ref dom.Ref, ev dom.Event) bool

// Page is a fake dom.Page. All methods are safe for concurrent use.
type Page struct {
	mu sync.Mutex

	doc    *html.Node
	refs   map[dom.Ref]*html.Node
	byNode map[*html.Node]dom.Ref
	nextID int
	values map[*html.Node]string

	active       *html.Node
	caret        *html.Node
	selectAll    bool
	selectedEnd  *html.Node
	pending      []func()
	failures     map[string][]error
	storage      []dom.StorageItem
	dispatched   []Dispatched
	execCommands []string

	// ReadyState is reported by DocumentHTML.
	ReadyState string
	// Metrics is reported by Window.
	Metrics schemas.WindowMetrics
	// OnEvent runs for every dispatched event, outside the page lock.
	OnEvent EventHook
	// Eval backs Evaluate. A nil Eval makes every evaluation fail.
	Eval func(expression string) (dom.EvalResult, error)
	// EvalContext takes precedence over Eval. It sees the request context,
	// which lets a test model a promise that settles late or never.
	EvalContext func(ctx context.Context, expression string) (dom.EvalResult, error)
	// ExecCommandDisabled makes every execCommand report false.
	ExecCommandDisabled bool
}

var _ dom.Page = (*Page)(nil)

// New parses markup into a page.
func New(markup string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("domtest: parse fixture: %w", err)
	}
	p := &Page{
		doc:        doc,
		refs:       make(map[dom.Ref]*html.Node),
		byNode:     make(map[*html.Node]dom.Ref),
		values:     make(map[*html.Node]string),
		failures:   make(map[string][]error),
		ReadyState: "complete",
		Metrics:    schemas.WindowMetrics{InnerWidth: 1280, InnerHeight: 800, DevicePixelRatio: 1},
	}
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "input":
			p.values[n] = attr(n, "value")
		case "textarea":
			p.values[n] = textContent(n)
		}
		return true
	})
	return p, nil
}

// MustNew is New for fixtures known to be valid.
func MustNew(markup string) *Page {
	p, err := New(markup)
	if err != nil {
		panic(err)
	}
	return p
}

// -- test helpers --

// Find returns the first element in document order matching a simple
// compound selector (tag, #id, .class, [attr], [attr="v"]). It panics when
// nothing matches.
func (p *Page) Find(css string) dom.Ref {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel, err := parseSelector(css)
	if err != nil {
		panic(err)
	}
	var found *html.Node
	walk(p.doc, func(n *html.Node) bool {
		if found == nil && n.Type == html.ElementNode && sel.match(n) {
			found = n
		}
		return found == nil
	})
	if found == nil {
		panic(fmt.Sprintf("domtest: no element matches %q", css))
	}
	return p.refOf(found)
}

// FailNext makes the next call to method return err. Calls queue in order.
func (p *Page) FailNext(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[method] = append(p.failures[method], err)
}

// Later queues fn to run at the start of the next page call, which is how
// the fake models work a framework schedules after an event handler returns.
func (p *Page) Later(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, fn)
}

// ForceValue sets a control's value without going through the port. It is
// meant for use inside hooks and Later callbacks.
func (p *Page) ForceValue(ref dom.Ref, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.refs[ref]; ok {
		p.values[n] = value
	}
}

// SetActive moves focus without dispatching anything.
func (p *Page) SetActive(ref dom.Ref) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = p.refs[ref]
}

// Events returns every dispatched event in order.
func (p *Page) Events() []Dispatched {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Dispatched(nil), p.dispatched...)
}

// EventTypes returns the dispatched event types for ref in order.
func (p *Page) EventTypes(ref dom.Ref) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, d := range p.dispatched {
		if d.Ref == ref {
			out = append(out, d.Event.Type)
		}
	}
	return out
}

// ExecCommands returns every execCommand invocation as "command:arg".
func (p *Page) ExecCommands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.execCommands...)
}

// SelectedEnd returns the element the selection was last collapsed into.
func (p *Page) SelectedEnd() (dom.Ref, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.selectedEnd == nil {
		return "", false
	}
	return p.refOf(p.selectedEnd), true
}

// Active returns the focused element.
func (p *Page) Active() (dom.Ref, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return "", false
	}
	return p.refOf(p.active), true
}

// SeedStorage replaces storage contents.
func (p *Page) SeedStorage(items ...dom.StorageItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.storage = append([]dom.StorageItem(nil), items...)
}

// -- internals --

// enter locks the page, runs deferred work and consumes an injected failure.
// The caller must unlock.
func (p *Page) enter(method string) error {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	if len(pending) > 0 {
		p.mu.Unlock()
		for _, fn := range pending {
			fn()
		}
		p.mu.Lock()
	}
	if errs := p.failures[method]; len(errs) > 0 {
		p.failures[method] = errs[1:]
		return errs[0]
	}
	return nil
}

func (p *Page) refOf(n *html.Node) dom.Ref {
	if r, ok := p.byNode[n]; ok {
		return r
	}
	p.nextID++
	r := dom.Ref("n" + strconv.Itoa(p.nextID))
	p.refs[r] = n
	p.byNode[n] = r
	return r
}

func (p *Page) node(ref dom.Ref) (*html.Node, error) {
	n, ok := p.refs[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	return n, nil
}

func (p *Page) describe(n *html.Node) dom.Element {
	return dom.Element{
		Ref:         p.refOf(n),
		Parent:      -1,
		Tag:         strings.ToLower(n.Data),
		ID:          attr(n, "id"),
		Classes:     attr(n, "class"),
		Type:        strings.ToLower(attr(n, "type")),
		Text:        strings.TrimSpace(textContent(n)),
		Placeholder: attr(n, "placeholder"),
		Title:       attr(n, "title"),
		AriaLabel:   attr(n, "aria-label"),
		Editable:    isContentEditable(n),
	}
}

// editingHost is the outermost contenteditable ancestor-or-self of n.
func editingHost(n *html.Node) *html.Node {
	var host *html.Node
	for c := n; c != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		if v, ok := attrOK(c, "contenteditable"); ok {
			if strings.EqualFold(v, "false") {
				break
			}
			host = c
		}
	}
	return host
}

// deepestLastElement follows last element children down from n.
func deepestLastElement(n *html.Node) *html.Node {
	for {
		var last *html.Node
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			if c.Type == html.ElementNode && c.Data != "br" {
				last = c
				break
			}
		}
		if last == nil {
			return n
		}
		n = last
	}
}

// -- dom.Locator --

func (p *Page) Query(ctx context.Context, kind schemas.SelectorKind, value string) ([]dom.Element, error) {
	if err := p.enter("Query"); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	defer p.mu.Unlock()

	var nodes []*html.Node
	classes := strings.Fields(value)
	var q string
	if kind == schemas.SelectorText {
		q = strings.ToLower(strings.TrimSpace(value))
	}
	walk(p.doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch kind {
		case schemas.SelectorID:
			if len(nodes) == 0 && value != "" && attr(n, "id") == value {
				nodes = append(nodes, n)
			}
		case schemas.SelectorClass:
			if len(classes) > 0 && hasClasses(n, classes) {
				nodes = append(nodes, n)
			}
		case schemas.SelectorTag:
			if value == "*" || strings.EqualFold(n.Data, value) {
				nodes = append(nodes, n)
			}
		case schemas.SelectorText:
			if q != "" && (nonRendering[n.Data] || textCandidate(n, q)) {
				nodes = append(nodes, n)
			}
		}
		return true
	})

	index := make(map[*html.Node]int, len(nodes))
	out := make([]dom.Element, 0, len(nodes))
	for i, n := range nodes {
		el := p.describe(n)
		if q != "" && !textCandidate(n, q) {
			el.Text = ""
		}
		el.Index = i
		for a := n.Parent; a != nil; a = a.Parent {
			if j, ok := index[a]; ok {
				el.Parent = j
				break
			}
		}
		index[n] = i
		out = append(out, el)
	}
	return out, nil
}

func (p *Page) Describe(ctx context.Context, ref dom.Ref) (dom.Element, error) {
	if err := p.enter("Describe"); err != nil {
		p.mu.Unlock()
		return dom.Element{}, err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return dom.Element{}, err
	}
	return p.describe(n), nil
}

func (p *Page) QuerySelector(ctx context.Context, ref dom.Ref, css string) (dom.Ref, bool, error) {
	if err := p.enter("QuerySelector"); err != nil {
		p.mu.Unlock()
		return "", false, err
	}
	defer p.mu.Unlock()
	root, err := p.node(ref)
	if err != nil {
		return "", false, err
	}
	sel, err := parseSelector(css)
	if err != nil {
		return "", false, err
	}
	var found *html.Node
	for c := root.FirstChild; c != nil && found == nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if found == nil && n.Type == html.ElementNode && sel.match(n) {
				found = n
			}
			return found == nil
		})
	}
	if found == nil {
		return "", false, nil
	}
	return p.refOf(found), true, nil
}

func (p *Page) HasAttribute(ctx context.Context, ref dom.Ref, name string) (bool, error) {
	if err := p.enter("HasAttribute"); err != nil {
		p.mu.Unlock()
		return false, err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return false, err
	}
	_, ok := attrOK(n, name)
	return ok, nil
}

// -- dom.Geometry --

func (p *Page) BoundingRect(ctx context.Context, ref dom.Ref) (schemas.Rect, error) {
	if err := p.enter("BoundingRect"); err != nil {
		p.mu.Unlock()
		return schemas.Rect{}, err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return schemas.Rect{}, err
	}
	fields := strings.Fields(attr(n, "data-rect"))
	var v [4]float64
	for i := 0; i < len(fields) && i < 4; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return schemas.Rect{}, fmt.Errorf("domtest: bad data-rect %q: %w", attr(n, "data-rect"), err)
		}
		v[i] = f
	}
	return schemas.Rect{Left: v[0], Top: v[1], Width: v[2], Height: v[3], Right: v[0] + v[2], Bottom: v[1] + v[3]}, nil
}

func (p *Page) Window(ctx context.Context) (schemas.WindowMetrics, error) {
	if err := p.enter("Window"); err != nil {
		p.mu.Unlock()
		return schemas.WindowMetrics{}, err
	}
	defer p.mu.Unlock()
	return p.Metrics, nil
}

// -- dom.Input --

func (p *Page) Focus(ctx context.Context, ref dom.Ref) error {
	if err := p.enter("Focus"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return err
	}
	p.active = n
	p.caret = nil
	p.selectAll = false
	return nil
}

func (p *Page) ActiveElement(ctx context.Context) (dom.Ref, bool, error) {
	if err := p.enter("ActiveElement"); err != nil {
		p.mu.Unlock()
		return "", false, err
	}
	defer p.mu.Unlock()
	if p.active == nil {
		return "", false, nil
	}
	return p.refOf(p.active), true, nil
}

func (p *Page) Dispatch(ctx context.Context, ref dom.Ref, ev dom.Event) (bool, error) {
	if err := p.enter("Dispatch"); err != nil {
		p.mu.Unlock()
		return false, err
	}
	if _, err := p.node(ref); err != nil {
		p.mu.Unlock()
		return false, err
	}
	p.dispatched = append(p.dispatched, Dispatched{Ref: ref, Event: ev})
	hook := p.OnEvent
	p.mu.Unlock()

	cancelled := false
	if hook != nil {
		cancelled = hook(p, ref, ev)
	}
	return !(ev.Cancelable && cancelled), nil
}

func (p *Page) ExecCommand(ctx context.Context, command, arg string) (bool, error) {
	if err := p.enter("ExecCommand"); err != nil {
		p.mu.Unlock()
		return false, err
	}
	defer p.mu.Unlock()
	p.execCommands = append(p.execCommands, command+":"+arg)
	if p.ExecCommandDisabled || p.active == nil {
		return false, nil
	}
	host := editingHost(p.active)
	if host == nil {
		return false, nil
	}
	switch command {
	case "selectAll":
		p.selectAll = true
		return true, nil
	case "delete":
		if p.selectAll {
			removeText(host)
			p.selectAll = false
			p.caret = nil
		}
		return true, nil
	case "insertText":
		if p.selectAll {
			removeText(host)
			p.selectAll = false
		}
		target := p.caret
		if target == nil || editingHost(target) != host {
			target = deepestLastElement(p.active)
		}
		appendText(target, arg)
		p.caret = target
		return true, nil
	}
	return false, nil
}

// -- dom.Content --

func (p *Page) Value(ctx context.Context, ref dom.Ref) (string, error) {
	if err := p.enter("Value"); err != nil {
		p.mu.Unlock()
		return "", err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return "", err
	}
	return p.values[n], nil
}

func (p *Page) SetValue(ctx context.Context, ref dom.Ref, value string) error {
	if err := p.enter("SetValue"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return err
	}
	if n.Data != "input" && n.Data != "textarea" {
		return fmt.Errorf("domtest: <%s> has no value setter", n.Data)
	}
	p.values[n] = value
	return nil
}

func (p *Page) TextContent(ctx context.Context, ref dom.Ref) (string, error) {
	if err := p.enter("TextContent"); err != nil {
		p.mu.Unlock()
		return "", err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return "", err
	}
	return textContent(n), nil
}

func (p *Page) SetTextContent(ctx context.Context, ref dom.Ref, text string) error {
	if err := p.enter("SetTextContent"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return err
	}
	removeChildren(n)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return nil
}

func (p *Page) SetInnerHTML(ctx context.Context, ref dom.Ref, markup string) error {
	if err := p.enter("SetInnerHTML"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return err
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("domtest: parse fragment: %w", err)
	}
	removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	p.caret = nil
	return nil
}

func (p *Page) InsertTextAtEnd(ctx context.Context, ref dom.Ref, text string) error {
	if err := p.enter("InsertTextAtEnd"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return err
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	p.caret = n
	return nil
}

func (p *Page) SelectEnd(ctx context.Context, ref dom.Ref) error {
	if err := p.enter("SelectEnd"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	n, err := p.node(ref)
	if err != nil {
		return err
	}
	p.selectedEnd = n
	p.caret = n
	return nil
}

// -- dom.Scripting / dom.Document --

func (p *Page) Evaluate(ctx context.Context, expression string) (dom.EvalResult, error) {
	if err := p.enter("Evaluate"); err != nil {
		p.mu.Unlock()
		return dom.EvalResult{}, err
	}
	eval, evalCtx := p.Eval, p.EvalContext
	p.mu.Unlock()
	if evalCtx != nil {
		return evalCtx(ctx, expression)
	}
	if eval == nil {
		return dom.EvalResult{}, &dom.EvalError{Message: "ReferenceError: evaluation is not available"}
	}
	return eval(expression)
}

func (p *Page) DocumentHTML(ctx context.Context) (string, string, error) {
	if err := p.enter("DocumentHTML"); err != nil {
		p.mu.Unlock()
		return "", "", err
	}
	defer p.mu.Unlock()
	var root *html.Node
	for c := p.doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			root = c
			break
		}
	}
	if root == nil {
		return "", p.ReadyState, nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", "", err
	}
	return buf.String(), p.ReadyState, nil
}

// -- dom.Storage --

func (p *Page) StorageItems(ctx context.Context) ([]dom.StorageItem, error) {
	if err := p.enter("StorageItems"); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	defer p.mu.Unlock()
	return append([]dom.StorageItem(nil), p.storage...), nil
}

func (p *Page) StorageGet(ctx context.Context, key string) (string, bool, error) {
	if err := p.enter("StorageGet"); err != nil {
		p.mu.Unlock()
		return "", false, err
	}
	defer p.mu.Unlock()
	for _, it := range p.storage {
		if it.Key == key {
			return it.Value, true, nil
		}
	}
	return "", false, nil
}

func (p *Page) StorageSet(ctx context.Context, key, value string) error {
	if err := p.enter("StorageSet"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	for i, it := range p.storage {
		if it.Key == key {
			p.storage[i].Value = value
			return nil
		}
	}
	p.storage = append(p.storage, dom.StorageItem{Key: key, Value: value})
	return nil
}

func (p *Page) StorageRemove(ctx context.Context, key string) error {
	if err := p.enter("StorageRemove"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	for i, it := range p.storage {
		if it.Key == key {
			p.storage = append(p.storage[:i], p.storage[i+1:]...)
			break
		}
	}
	return nil
}

func (p *Page) StorageClear(ctx context.Context) error {
	if err := p.enter("StorageClear"); err != nil {
		p.mu.Unlock()
		return err
	}
	defer p.mu.Unlock()
	p.storage = nil
	return nil
}

// JSONResult is a convenience for Eval hooks returning serializable values.
func JSONResult(typ string, v any) dom.EvalResult {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	res := dom.EvalResult{Type: typ, JSON: b, Description: string(b)}
	switch v.(type) {
	case nil:
		res.Subtype = "null"
	case []any, []string, []int:
		res.Subtype = "array"
	}
	return res
}
