package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
	"github.com/xkilldash9x/webpilot/internal/browser/dom/domtest"
	"github.com/xkilldash9x/webpilot/internal/config"
)

// countingPacer records requested waits without sleeping.
type countingPacer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *countingPacer) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *countingPacer) count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waits {
		if w == d {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T) (*Engine, *countingPacer) {
	t.Helper()
	cfg := config.NewDefaultConfig().Engine()
	pacer := &countingPacer{}
	return New(zaptest.NewLogger(t), cfg, pacer), pacer
}

func handle(t *testing.T, e *Engine, p dom.Page, event string, payload string) schemas.Response {
	t.Helper()
	var raw json.RawMessage
	if payload != "" {
		raw = json.RawMessage(payload)
	}
	return e.Handle(context.Background(), p, event, raw)
}

// dataJSON re-encodes the envelope data for structural assertions.
func dataJSON(t *testing.T, resp schemas.Response) string {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	return string(b)
}

func TestHandleUnknownEvent(t *testing.T) {
	e, _ := newTestEngine(t)
	resp := handle(t, e, domtest.MustNew(``), "reboot", "")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown event")
	assert.Equal(t, schemas.GuestEvents, e.Events())
}

func TestHandleRecoversFromPanics(t *testing.T) {
	e, _ := newTestEngine(t)
	p := domtest.MustNew(``)
	p.Eval = func(string) (dom.EvalResult, error) { panic("page went away") }

	resp := handle(t, e, p, schemas.EventExecuteJS, `"1"`)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "page went away")
}

func TestHandleInvalidPayload(t *testing.T) {
	e, _ := newTestEngine(t)
	p := domtest.MustNew(``)
	for _, event := range []string{schemas.EventGetElementPosition, schemas.EventSendTextToElement, schemas.EventGetLocalStorage} {
		resp := handle(t, e, p, event, `[1, 2`)
		assert.False(t, resp.Success, event)
		assert.Contains(t, resp.Error, "invalid payload", event)

		resp = handle(t, e, p, event, "")
		assert.False(t, resp.Success, event)
	}
}

func TestGetDOMContent(t *testing.T) {
	e, _ := newTestEngine(t)
	p := domtest.MustNew(`<p id="x">hi</p>`)

	resp := handle(t, e, p, schemas.EventGetDOMContent, "")
	require.True(t, resp.Success)
	markup, ok := resp.Data.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(markup, "<html>"))
	assert.Contains(t, markup, `<p id="x">hi</p>`)

	p.ReadyState = "loading"
	resp = handle(t, e, p, schemas.EventGetDOMContent, "")
	require.True(t, resp.Success)
	assert.Equal(t, "", resp.Data)

	p.FailNext("DocumentHTML", assert.AnError)
	resp = handle(t, e, p, schemas.EventGetDOMContent, "")
	assert.False(t, resp.Success)
}

func TestGetElementPosition(t *testing.T) {
	const markup = `<button id="go" class="btn primary" data-rect="10 20 100 40">Continue</button>`

	t.Run("document coordinates include scroll", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(markup)
		p.Metrics.ScrollX, p.Metrics.ScrollY = 5, 300

		res, err := e.ElementPosition(context.Background(), p, schemas.PositionRequest{SelectorType: "id", SelectorValue: "go"})
		require.NoError(t, err)
		assert.Equal(t, 65.0, res.X)
		assert.Equal(t, 340.0, res.Y)
		assert.Equal(t, schemas.Point{X: 60, Y: 40}, res.Debug.ViewportCenter)
		assert.Equal(t, schemas.Point{X: 65, Y: 340}, res.Debug.DocumentCenter)
		assert.Equal(t, 300.0, res.Debug.Window.ScrollY)
		assert.Equal(t, schemas.PositionedElement{Tag: "button", Classes: "btn primary", ID: "go", Text: "Continue"}, res.Element)
		assert.False(t, res.Clicked)
		assert.Nil(t, res.ClickResult)
	})

	t.Run("raw coordinates are viewport relative", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(markup)
		p.Metrics.ScrollY = 300

		res, err := e.ElementPosition(context.Background(), p, schemas.PositionRequest{SelectorType: "id", SelectorValue: "go", RawCoordinates: true})
		require.NoError(t, err)
		assert.Equal(t, 60.0, res.X)
		assert.Equal(t, 40.0, res.Y)
	})

	t.Run("geometry is read fresh on every request", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(markup)
		req := schemas.PositionRequest{SelectorType: "id", SelectorValue: "go"}

		first, err := e.ElementPosition(context.Background(), p, req)
		require.NoError(t, err)
		p.Metrics.ScrollY = 1000
		second, err := e.ElementPosition(context.Background(), p, req)
		require.NoError(t, err)
		assert.Equal(t, first.Y+1000, second.Y)
	})

	t.Run("click dispatches the pointer sequence at the viewport centre", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(markup)
		p.Metrics.ScrollY = 300

		resp := handle(t, e, p, schemas.EventGetElementPosition, `{"selectorType":"id","selectorValue":"go","shouldClick":true}`)
		require.True(t, resp.Success, resp.Error)
		res := resp.Data.(schemas.PositionResult)
		assert.True(t, res.Clicked)
		require.NotNil(t, res.ClickResult)
		assert.True(t, res.ClickResult.Success)

		events := p.Events()
		require.Len(t, events, 3)
		for i, want := range []string{"pointerdown", "pointerup", "click"} {
			assert.Equal(t, want, events[i].Event.Type)
			assert.Equal(t, 60.0, events[i].Event.ClientX)
			assert.Equal(t, 40.0, events[i].Event.ClientY)
		}
	})

	t.Run("click failure is reported inline", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(markup)
		p.FailNext("Dispatch", errors.New("node detached"))

		resp := handle(t, e, p, schemas.EventGetElementPosition, `{"selectorType":"id","selectorValue":"go","shouldClick":true}`)
		require.True(t, resp.Success)
		res := resp.Data.(schemas.PositionResult)
		assert.False(t, res.Clicked)
		require.NotNil(t, res.ClickResult)
		assert.False(t, res.ClickResult.Success)
		assert.Contains(t, res.ClickResult.Error, "node detached")
	})

	t.Run("long text is truncated", func(t *testing.T) {
		e, _ := newTestEngine(t)
		long := strings.Repeat("é", 150)
		p := domtest.MustNew(`<p id="t">` + long + `</p>`)

		res, err := e.ElementPosition(context.Background(), p, schemas.PositionRequest{SelectorType: "id", SelectorValue: "t"})
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("é", 100)+"...", res.Element.Text)
	})

	t.Run("multiple matches carry a diagnostic", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(`<b class="k">1</b><b class="k">2</b>`)

		res, err := e.ElementPosition(context.Background(), p, schemas.PositionRequest{SelectorType: "class", SelectorValue: "k"})
		require.NoError(t, err)
		assert.Equal(t, "1", res.Element.Text)
		assert.Len(t, res.Debug.Diagnostics, 1)
	})

	t.Run("unsupported selector type", func(t *testing.T) {
		e, _ := newTestEngine(t)
		resp := handle(t, e, domtest.MustNew(markup), schemas.EventGetElementPosition, `{"selectorType":"xpath","selectorValue":"//button"}`)
		assert.False(t, resp.Success)
		assert.Equal(t, "unsupported selector type: xpath", resp.Error)
	})

	t.Run("selector type is case insensitive", func(t *testing.T) {
		e, _ := newTestEngine(t)
		_, err := e.ElementPosition(context.Background(), domtest.MustNew(markup), schemas.PositionRequest{SelectorType: " ID ", SelectorValue: "go"})
		assert.NoError(t, err)
	})

	t.Run("not found carries diagnostics", func(t *testing.T) {
		e, _ := newTestEngine(t)
		resp := handle(t, e, domtest.MustNew(markup), schemas.EventGetElementPosition, `{"selectorType":"text","selectorValue":"continue"}`)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "element not found")
		assert.Contains(t, resp.Error, "button#go.btn.primary")
	})

	t.Run("layout failure", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(markup)
		p.FailNext("Window", assert.AnError)
		_, err := e.ElementPosition(context.Background(), p, schemas.PositionRequest{SelectorType: "id", SelectorValue: "go"})
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestSendTextToElement(t *testing.T) {
	t.Run("controlled input", func(t *testing.T) {
		e, pacer := newTestEngine(t)
		p := domtest.MustNew(`<input id="q" type="search" class="search" value="old">`)

		resp := handle(t, e, p, schemas.EventSendTextToElement, `{"selectorType":"id","selectorValue":"q","text":"hello"}`)
		require.True(t, resp.Success, resp.Error)
		res := resp.Data.(schemas.TypeResult)
		assert.Equal(t, "controlled-input", res.Strategy)
		assert.False(t, res.Corrected)
		assert.Equal(t, schemas.TypedElement{Tag: "input", Classes: "search", ID: "q", Type: "search", Text: "hello", IsEditable: true}, res.Element)

		v, err := p.Value(context.Background(), p.Find("#q"))
		require.NoError(t, err)
		assert.Equal(t, "hello", v)
		// Four gaps between five characters at the configured default.
		assert.Equal(t, 4, pacer.count(20*time.Millisecond))
	})

	t.Run("explicit delay", func(t *testing.T) {
		e, pacer := newTestEngine(t)
		p := domtest.MustNew(`<textarea id="t"></textarea>`)

		_, err := e.SendText(context.Background(), p, schemas.TypeRequest{SelectorType: "id", SelectorValue: "t", Text: "abc", DelayMs: intPtr(7)})
		require.NoError(t, err)
		assert.Equal(t, 2, pacer.count(7*time.Millisecond))
	})

	t.Run("negative delay is treated as zero", func(t *testing.T) {
		e, _ := newTestEngine(t)
		assert.Equal(t, time.Duration(0), e.keyDelay(intPtr(-5)))
		assert.Equal(t, 20*time.Millisecond, e.keyDelay(nil))
	})

	t.Run("generic contenteditable by text selector", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(`<div id="ed" contenteditable="true" title="Notes"></div>`)

		res, err := e.SendText(context.Background(), p, schemas.TypeRequest{SelectorType: "text", SelectorValue: "Notes", Text: "note"})
		require.NoError(t, err)
		assert.Equal(t, "generic-editable", res.Strategy)
		assert.Equal(t, "note", res.Element.Text)
		assert.True(t, res.Element.IsEditable)
	})

	t.Run("non-editable target uses direct assignment", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(`<span id="s">before</span>`)

		res, err := e.SendText(context.Background(), p, schemas.TypeRequest{SelectorType: "id", SelectorValue: "s", Text: "after"})
		require.NoError(t, err)
		assert.Equal(t, "direct-assignment", res.Strategy)
		assert.Equal(t, "after", res.Element.Text)
		assert.False(t, res.Element.IsEditable)
	})

	t.Run("correction is surfaced", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(`<input id="q">`)
		p.OnEvent = func(p *domtest.Page, r dom.Ref, ev dom.Event) bool {
			if ev.Type == "keyup" {
				p.Later(func() { p.ForceValue(r, "") })
			}
			return false
		}

		res, err := e.SendText(context.Background(), p, schemas.TypeRequest{SelectorType: "id", SelectorValue: "q", Text: "hi"})
		require.NoError(t, err)
		assert.True(t, res.Corrected)
		assert.Equal(t, "hi", res.Element.Text)
		require.NotEmpty(t, res.Diagnostics)
		assert.Contains(t, res.Diagnostics[len(res.Diagnostics)-1], "direct assignment used")
	})

	t.Run("cancelled context is a typing failure", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(`<input id="q">`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.SendText(ctx, p, schemas.TypeRequest{SelectorType: "id", SelectorValue: "q", Text: "hi"})
		assert.ErrorIs(t, err, ErrTyping)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing element", func(t *testing.T) {
		e, _ := newTestEngine(t)
		_, err := e.SendText(context.Background(), domtest.MustNew(`<input id="q">`), schemas.TypeRequest{SelectorType: "id", SelectorValue: "nope", Text: "x"})
		assert.ErrorIs(t, err, ErrElementNotFound)
	})
}

func TestExecuteJS(t *testing.T) {
	// evaluator accepts only the expression or statement form of known snippets.
	evaluator := func(expr string) (dom.EvalResult, error) {
		isExpr := strings.HasPrefix(expr, "(function(){ return (")
		switch {
		case strings.Contains(expr, "1 + 1") && isExpr:
			return domtest.JSONResult("number", 2), nil
		case strings.Contains(expr, "return 40 + 2") && !isExpr:
			return domtest.JSONResult("number", 42), nil
		case strings.Contains(expr, "({a: 1})"):
			return domtest.JSONResult("object", map[string]int{"a": 1}), nil
		case strings.Contains(expr, "document.title"):
			return domtest.JSONResult("string", "Inbox"), nil
		case strings.Contains(expr, "void 0"):
			return dom.EvalResult{Type: "undefined"}, nil
		case strings.Contains(expr, "null"):
			return domtest.JSONResult("object", nil), nil
		case strings.Contains(expr, "() => 1"):
			return dom.EvalResult{Type: "function", Description: "() => 1"}, nil
		case strings.Contains(expr, "50%"):
			return domtest.JSONResult("string", "50%"), nil
		}
		if isExpr {
			return dom.EvalResult{}, &dom.EvalError{Message: "SyntaxError: Unexpected token"}
		}
		return dom.EvalResult{}, &dom.EvalError{Message: "Error: boom"}
	}

	testCases := []struct {
		name       string
		payload    string
		wantResult string
		wantType   string
	}{
		{"expression", `"1 + 1"`, "2", "number"},
		{"object payload form", `{"code":"1 + 1"}`, "2", "number"},
		{"statement block retry", `"const x = 40; return 40 + 2"`, "42", "number"},
		{"object as JSON text", `"({a: 1})"`, `{"a":1}`, "object"},
		{"bare string", `"document.title"`, "Inbox", "string"},
		{"undefined", `"void 0"`, "undefined", "undefined"},
		{"null", `"null"`, "null", "object"},
		{"unserializable falls back to description", `"() => 1"`, "() => 1", "function"},
		{"percent signs survive wrapping", `"'50%'"`, "50%", "string"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			p := domtest.MustNew(``)
			p.Eval = evaluator

			resp := handle(t, e, p, schemas.EventExecuteJS, tc.payload)
			require.True(t, resp.Success, resp.Error)
			assert.Equal(t, schemas.ScriptResult{Result: tc.wantResult, Type: tc.wantType}, resp.Data)
		})
	}

	t.Run("script error is reported on both arms", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(``)
		p.Eval = evaluator

		resp := handle(t, e, p, schemas.EventExecuteJS, `"throw new Error('boom')"`)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "boom")
		res, ok := resp.Data.(schemas.ScriptResult)
		require.True(t, ok)
		assert.Equal(t, "error", res.Type)
		assert.Contains(t, res.Error, "boom")
	})

	t.Run("transport failure is not retried", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(``)
		calls := 0
		p.Eval = func(string) (dom.EvalResult, error) {
			calls++
			return dom.EvalResult{}, errors.New("websocket closed")
		}

		resp := handle(t, e, p, schemas.EventExecuteJS, `"1 + 1"`)
		assert.False(t, resp.Success)
		assert.Nil(t, resp.Data)
		assert.Equal(t, 1, calls)
	})
}

func TestManageLocalStorage(t *testing.T) {
	e, _ := newTestEngine(t)
	p := domtest.MustNew(``)

	resp := handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"get"}`)
	require.True(t, resp.Success)
	assert.JSONEq(t, `{}`, dataJSON(t, resp))

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"set","key":"prefs","value":{"theme": "dark", "size": 2}}`)
	require.True(t, resp.Success, resp.Error)
	assert.JSONEq(t, `{"key":"prefs","value":{"theme":"dark","size":2}}`, dataJSON(t, resp))

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"set","key":"token","value":"abc"}`)
	require.True(t, resp.Success)

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"set","key":"list","value":"[1, 2,  3]"}`)
	require.True(t, resp.Success)

	items, err := p.StorageItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dom.StorageItem{
		{Key: "prefs", Value: `{"theme":"dark","size":2}`},
		{Key: "token", Value: "abc"},
		{Key: "list", Value: "[1,2,3]"},
	}, items)

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"get","key":"prefs"}`)
	require.True(t, resp.Success)
	assert.JSONEq(t, `{"theme":"dark","size":2}`, dataJSON(t, resp))

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"get"}`)
	require.True(t, resp.Success)
	assert.JSONEq(t, `{"prefs":{"theme":"dark","size":2},"token":"abc","list":[1,2,3]}`, dataJSON(t, resp))

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"keys"}`)
	require.True(t, resp.Success)
	assert.Equal(t, []string{"prefs", "token", "list"}, resp.Data)

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"remove","key":"token"}`)
	require.True(t, resp.Success)
	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"get","key":"token"}`)
	require.True(t, resp.Success)
	assert.Nil(t, resp.Data)

	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"clear"}`)
	require.True(t, resp.Success)
	resp = handle(t, e, p, schemas.EventGetLocalStorage, `{"action":"keys"}`)
	require.True(t, resp.Success)
	assert.Equal(t, []string{}, resp.Data)
}

func TestManageLocalStorageErrors(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		want    error
	}{
		{"set without key", `{"action":"set","value":"v"}`, ErrMissingKey},
		{"set without value", `{"action":"set","key":"k"}`, ErrMissingValue},
		{"remove without key", `{"action":"remove"}`, ErrMissingKey},
		{"unknown action", `{"action":"flush"}`, ErrUnsupportedAction},
		{"empty action", `{}`, ErrUnsupportedAction},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			var req schemas.StorageRequest
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &req))
			_, err := e.Storage(context.Background(), domtest.MustNew(``), req)
			assert.ErrorIs(t, err, tc.want)

			resp := handle(t, e, domtest.MustNew(``), schemas.EventGetLocalStorage, tc.payload)
			assert.False(t, resp.Success)
			assert.Equal(t, err.Error(), resp.Error)
		})
	}

	t.Run("page failure", func(t *testing.T) {
		e, _ := newTestEngine(t)
		p := domtest.MustNew(``)
		p.FailNext("StorageClear", assert.AnError)
		_, err := e.Storage(context.Background(), p, schemas.StorageRequest{Action: schemas.StorageClear})
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestStoredValueNormalization(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{`{ "a" : 1 }`, `{"a":1}`},
		{` [1, 2] `, `[1,2]`},
		{`{not json`, `{not json`},
		{`plain`, `plain`},
		{`42`, `42`},
		{``, ``},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, normalizeStored(tc.in), tc.in)
	}
	assert.Equal(t, json.RawMessage(`{"a":1}`), decodeStored(`{ "a": 1 }`))
	assert.Equal(t, "42", decodeStored(`42`))
}

func intPtr(v int) *int { return &v }
