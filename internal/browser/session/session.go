// internal/browser/session/session.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// objectGroup scopes remote objects created while serializing script results.
const objectGroup = "webpilot"

// ErrClosed is returned once the target context is gone.
var ErrClosed = errors.New("session closed")

// executor evaluates expressions in the page. The CDP implementation is the
// only production one; tests substitute a recording fake.
type executor interface {
	// value evaluates expr, awaits a returned promise and decodes the
	// by-value result into out. A nil out discards the result.
	value(ctx context.Context, expr string, out any) error
	// remote evaluates arbitrary script and describes the result.
	remote(ctx context.Context, expr string) (dom.EvalResult, error)
}

// Session is the dom.Page for one page target. It holds no element state of
// its own: every call asks the page.
type Session struct {
	label  string
	target context.Context
	logger *zap.Logger
	exec   executor
}

var _ dom.Page = (*Session)(nil)

// New wraps a chromedp target context. target must already be bound to its
// page (chromedp.NewContext followed by a Run).
func New(target context.Context, label string, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newSession(target, label, logger, &cdpExecutor{target: target})
}

func newSession(target context.Context, label string, logger *zap.Logger, exec executor) *Session {
	return &Session{
		label:  label,
		target: target,
		logger: logger.Named("session").With(zap.String("window", label)),
		exec:   exec,
	}
}

// Label is the window label this session serves.
func (s *Session) Label() string { return s.label }

// Alive reports whether the target context is still usable.
func (s *Session) Alive() bool { return s.target.Err() == nil }

// call evaluates a page-side primitive and decodes its result into out.
func (s *Session) call(ctx context.Context, op string, out any, fn string, args ...any) error {
	if s.target.Err() != nil {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	expr, err := invocation(fn, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.exec.value(ctx, expr, out); err != nil {
		s.logger.Debug("Page primitive failed.", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// cdpExecutor runs expressions through the CDP Runtime domain.
type cdpExecutor struct {
	target context.Context
}

// run executes actions on the target while honouring ctx's deadline.
func (e *cdpExecutor) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(e.target, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (e *cdpExecutor) value(ctx context.Context, expr string, out any) error {
	return e.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(expr).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return errors.New(exceptionMessage(exc))
		}
		if out == nil || obj == nil || len(obj.Value) == 0 {
			return nil
		}
		return json.Unmarshal(obj.Value, out)
	}))
}

func (e *cdpExecutor) remote(ctx context.Context, expr string) (dom.EvalResult, error) {
	var res dom.EvalResult
	err := e.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exc, err := runtime.Evaluate(expr).
			WithAwaitPromise(true).
			WithUserGesture(true).
			WithObjectGroup(objectGroup).
			Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObjectGroup(objectGroup).Do(ctx) }()
		if exc != nil {
			return &dom.EvalError{Message: exceptionMessage(exc)}
		}
		res = describeRemote(ctx, obj)
		return nil
	}))
	return res, err
}

// describeRemote converts a remote object. Objects are fetched again by
// value; one that cannot be serialized keeps only its description.
func describeRemote(ctx context.Context, obj *runtime.RemoteObject) dom.EvalResult {
	res := dom.EvalResult{
		Type:        string(obj.Type),
		Subtype:     string(obj.Subtype),
		Description: obj.Description,
	}
	switch {
	case obj.UnserializableValue != "":
		res.Description = string(obj.UnserializableValue)
	case obj.Type == runtime.TypeObject && obj.ObjectID != "":
		val, exc, err := runtime.CallFunctionOn("function() { return this; }").
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err == nil && exc == nil && val != nil && len(val.Value) > 0 {
			res.JSON = json.RawMessage(val.Value)
		}
	case len(obj.Value) > 0:
		res.JSON = json.RawMessage(obj.Value)
	}
	return res
}

func exceptionMessage(exc *runtime.ExceptionDetails) string {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return exc.Exception.Description
	}
	return exc.Text
}
