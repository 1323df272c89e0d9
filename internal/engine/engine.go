// Package engine answers webview requests: it resolves selectors to
// elements, reads live geometry, evaluates scripts, manages local storage and
// types text through the humanoid strategies. It only ever talks to the page
// through the dom.Page port.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
	"github.com/xkilldash9x/webpilot/internal/browser/humanoid"
	"github.com/xkilldash9x/webpilot/internal/config"
)

type handlerFunc func(ctx context.Context, page dom.Page, payload json.RawMessage) schemas.Response

// Engine is stateless between requests; one instance serves every window.
type Engine struct {
	logger   *zap.Logger
	cfg      config.EngineConfig
	resolver *Resolver
	typist   *humanoid.Typist
	handlers map[string]handlerFunc
}

// New builds an engine. A nil pacer uses real timers.
func New(logger *zap.Logger, cfg config.EngineConfig, pacer humanoid.Pacer) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("engine")
	if cfg.TextPreviewLength <= 0 {
		cfg.TextPreviewLength = 100
	}
	e := &Engine{
		logger:   logger,
		cfg:      cfg,
		resolver: NewResolver(logger, cfg.TextPreviewLength, cfg.MaxTextSuggestions),
		typist:   humanoid.New(logger, humanoid.OptionsFromConfig(cfg), pacer),
	}
	e.handlers = map[string]handlerFunc{
		schemas.EventGetDOMContent:      e.handleDocument,
		schemas.EventGetLocalStorage:    e.handleStorage,
		schemas.EventExecuteJS:          e.handleScript,
		schemas.EventGetElementPosition: e.handlePosition,
		schemas.EventSendTextToElement:  e.handleType,
	}
	return e
}

// Handle runs one request and always produces exactly one envelope, even if
// the operation panics.
func (e *Engine) Handle(ctx context.Context, page dom.Page, event string, payload json.RawMessage) (resp schemas.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered from panic while handling event.",
				zap.String("event", event),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			resp = schemas.Fail(fmt.Errorf("internal error handling %s: %v", event, r))
		}
		e.logger.Debug("Event handled.",
			zap.String("event", event),
			zap.Bool("success", resp.Success),
			zap.Duration("took", time.Since(start)))
	}()

	h, ok := e.handlers[event]
	if !ok {
		return schemas.Fail(fmt.Errorf("%w: %s", ErrUnknownEvent, event))
	}
	return h(ctx, page, payload)
}

func (e *Engine) handleDocument(ctx context.Context, page dom.Page, _ json.RawMessage) schemas.Response {
	markup, err := e.DocumentContent(ctx, page)
	if err != nil {
		return schemas.Fail(err)
	}
	return schemas.OK(markup)
}

func (e *Engine) handleStorage(ctx context.Context, page dom.Page, payload json.RawMessage) schemas.Response {
	var req schemas.StorageRequest
	if err := decodePayload(payload, &req); err != nil {
		return schemas.Fail(err)
	}
	data, err := e.Storage(ctx, page, req)
	if err != nil {
		return schemas.Fail(err)
	}
	return schemas.OK(data)
}

func (e *Engine) handleScript(ctx context.Context, page dom.Page, payload json.RawMessage) schemas.Response {
	code, err := scriptCode(payload)
	if err != nil {
		return schemas.Fail(err)
	}
	res, err := e.ExecuteJS(ctx, page, code)
	if err != nil {
		if res.Type == "error" {
			return schemas.FailWithData(err, res)
		}
		return schemas.Fail(err)
	}
	return schemas.OK(res)
}

func (e *Engine) handlePosition(ctx context.Context, page dom.Page, payload json.RawMessage) schemas.Response {
	var req schemas.PositionRequest
	if err := decodePayload(payload, &req); err != nil {
		return schemas.Fail(err)
	}
	res, err := e.ElementPosition(ctx, page, req)
	if err != nil {
		return schemas.Fail(err)
	}
	return schemas.OK(res)
}

func (e *Engine) handleType(ctx context.Context, page dom.Page, payload json.RawMessage) schemas.Response {
	var req schemas.TypeRequest
	if err := decodePayload(payload, &req); err != nil {
		return schemas.Fail(err)
	}
	res, err := e.SendText(ctx, page, req)
	if err != nil {
		return schemas.Fail(err)
	}
	return schemas.OK(res)
}

// ElementPosition resolves the selector, reads live geometry and optionally
// clicks the element's viewport centre.
func (e *Engine) ElementPosition(ctx context.Context, page dom.Page, req schemas.PositionRequest) (schemas.PositionResult, error) {
	target, err := e.resolve(ctx, page, req.SelectorType, req.SelectorValue)
	if err != nil {
		return schemas.PositionResult{}, err
	}
	loc, err := Locate(ctx, page, target.Element.Ref)
	if err != nil {
		return schemas.PositionResult{}, err
	}

	point := loc.DocumentPoint
	if req.RawCoordinates {
		point = loc.ViewportCenter
	}
	el := target.Element
	res := schemas.PositionResult{
		X: point.X,
		Y: point.Y,
		Element: schemas.PositionedElement{
			Tag:         el.Tag,
			Classes:     el.Classes,
			ID:          el.ID,
			Text:        truncate(el.Text, e.cfg.TextPreviewLength),
			Placeholder: el.Placeholder,
		},
		Debug: schemas.PositionDebug{
			ElementRect:    loc.Rect,
			ViewportCenter: loc.ViewportCenter,
			DocumentCenter: loc.DocumentPoint,
			Window:         loc.Window,
			Diagnostics:    target.Diagnostics,
		},
	}

	if req.ShouldClick {
		click := humanoid.Click(ctx, page, el.Ref, loc.ViewportCenter)
		if !click.Success {
			e.logger.Warn("Click dispatch failed.", zap.String("element", label(el)), zap.String("error", click.Error))
		}
		res.Clicked = click.Success
		res.ClickResult = &click
	}
	return res, nil
}

// SendText resolves the selector and types text with the strategy the
// element's category calls for.
func (e *Engine) SendText(ctx context.Context, page dom.Page, req schemas.TypeRequest) (schemas.TypeResult, error) {
	target, err := e.resolve(ctx, page, req.SelectorType, req.SelectorValue)
	if err != nil {
		return schemas.TypeResult{}, err
	}
	el := target.Element

	outcome, err := e.typist.Type(ctx, page, el, req.Text, e.keyDelay(req.DelayMs))
	if err != nil {
		return schemas.TypeResult{}, err
	}

	diags := target.Diagnostics
	if outcome.Corrected && outcome.Reason != "" {
		diags = append(diags, "direct assignment used: "+outcome.Reason)
	}
	return schemas.TypeResult{
		Element: schemas.TypedElement{
			Tag:        el.Tag,
			Classes:    el.Classes,
			ID:         el.ID,
			Type:       el.Type,
			Text:       truncate(e.currentText(ctx, page, el), e.cfg.TextPreviewLength),
			IsEditable: el.Editable || el.IsTextControl(),
		},
		Strategy:    outcome.Category.String(),
		Corrected:   outcome.Corrected,
		Diagnostics: diags,
	}, nil
}

// Events lists the request events this engine answers.
func (e *Engine) Events() []string {
	return append([]string(nil), schemas.GuestEvents...)
}

func (e *Engine) resolve(ctx context.Context, page dom.Locator, kind, value string) (Target, error) {
	k, err := schemas.ParseSelectorKind(kind)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %s", ErrSelectorUnsupported, kind)
	}
	return e.resolver.Resolve(ctx, page, schemas.Selector{Kind: k, Value: value})
}

func (e *Engine) keyDelay(ms *int) time.Duration {
	if ms == nil {
		return e.cfg.DefaultKeyDelay
	}
	if *ms < 0 {
		return 0
	}
	return time.Duration(*ms) * time.Millisecond
}

// currentText reads the element's content after typing. A failed read is
// reported as empty rather than failing a completed operation.
func (e *Engine) currentText(ctx context.Context, page dom.Content, el dom.Element) string {
	var (
		text string
		err  error
	)
	if el.IsTextControl() {
		text, err = page.Value(ctx, el.Ref)
	} else {
		text, err = page.TextContent(ctx, el.Ref)
	}
	if err != nil {
		e.logger.Debug("Could not read element text after typing.", zap.Error(err))
		return ""
	}
	return text
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// scriptCode accepts the code either as a bare JSON string or as {"code": ...}.
func scriptCode(payload json.RawMessage) (string, error) {
	var code string
	if err := json.Unmarshal(payload, &code); err == nil {
		return code, nil
	}
	var obj struct {
		Code string `json:"code"`
	}
	if err := decodePayload(payload, &obj); err != nil {
		return "", err
	}
	return obj.Code, nil
}
