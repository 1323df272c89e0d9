package humanoid

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// sequence is the category-specific part of a strategy: the keystroke loop,
// the direct-assignment fallback, and how to read the resulting text back.
type sequence interface {
	keystrokes(ctx context.Context, job Job) error
	fallback(ctx context.Context, job Job) error
	readBack(ctx context.Context, job Job) (string, error)
}

// base holds what every strategy shares.
type base struct {
	logger *zap.Logger
	opts   Options
	pacer  Pacer
}

// focus focuses ref and waits for the framework to attach its listeners.
func (b *base) focus(ctx context.Context, page dom.Input, ref dom.Ref) error {
	if err := page.Focus(ctx, ref); err != nil {
		return fmt.Errorf("focus: %w", err)
	}
	return b.pacer.Sleep(ctx, b.opts.FocusSettle)
}

// between waits the inter-key delay, except after the last character.
func (b *base) between(ctx context.Context, i, n int, delay time.Duration) error {
	if i >= n-1 {
		return nil
	}
	return b.pacer.Sleep(ctx, delay)
}

// run drives a sequence to a verified end state. A failing or unverified
// keystroke loop is corrected by the fallback; only a failing fallback or a
// cancelled context is reported as ErrTyping.
func (b *base) run(ctx context.Context, cat Category, seq sequence, job Job) (Outcome, error) {
	out := Outcome{Category: cat}
	logger := b.logger.With(zap.String("strategy", cat.String()), zap.String("ref", string(job.Target.Ref)))

	err := seq.keystrokes(ctx, job)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%w: %s interrupted: %w", ErrTyping, cat, ctxErr)
	}

	if err != nil {
		out.Reason = err.Error()
		logger.Warn("Keystroke sequence failed, assigning directly.", zap.Error(err))
	} else {
		got, rerr := seq.readBack(ctx, job)
		switch {
		case rerr != nil:
			out.Reason = fmt.Sprintf("read back: %v", rerr)
		case got == job.Text:
			return out, nil
		default:
			out.Reason = fmt.Sprintf("content %q does not match requested text", got)
		}
		logger.Debug("Post-condition check failed, correcting.", zap.String("reason", out.Reason))
	}

	out.Corrected = true
	if ferr := seq.fallback(ctx, job); ferr != nil {
		return out, fmt.Errorf("%w: %s fallback: %w", ErrTyping, cat, ferr)
	}
	return out, nil
}

// keystroke emits keydown, performs insert, then emits input and keyup.
func keystroke(ctx context.Context, page dom.Input, ref dom.Ref, r rune, insert func() error) error {
	if _, err := page.Dispatch(ctx, ref, dom.KeyDown(r)); err != nil {
		return fmt.Errorf("keydown %q: %w", r, err)
	}
	if err := insert(); err != nil {
		return fmt.Errorf("insert %q: %w", r, err)
	}
	if _, err := page.Dispatch(ctx, ref, dom.InputText(string(r))); err != nil {
		return fmt.Errorf("input %q: %w", r, err)
	}
	if _, err := page.Dispatch(ctx, ref, dom.KeyUp(r)); err != nil {
		return fmt.Errorf("keyup %q: %w", r, err)
	}
	return nil
}

// emit dispatches events in order, stopping at the first failure.
func emit(ctx context.Context, page dom.Input, ref dom.Ref, events ...dom.Event) error {
	for _, ev := range events {
		if _, err := page.Dispatch(ctx, ref, ev); err != nil {
			return fmt.Errorf("%s: %w", ev.Type, err)
		}
	}
	return nil
}
