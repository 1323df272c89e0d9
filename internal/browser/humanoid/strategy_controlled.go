package humanoid

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// controlledInput types into native inputs owned by a virtual-DOM framework.
// Assigning .value once is reverted on the next render, so the value is
// rebuilt one prefix at a time with the events the framework listens for.
type controlledInput struct{ base }

func (s *controlledInput) Category() Category { return CategoryControlledInput }

func (s *controlledInput) Type(ctx context.Context, job Job) (Outcome, error) {
	return s.run(ctx, s.Category(), s, job)
}

func (s *controlledInput) keystrokes(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	if err := s.focus(ctx, page, ref); err != nil {
		return err
	}

	// Force the framework to observe an empty field first.
	if err := page.SetValue(ctx, ref, ""); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := emit(ctx, page, ref, dom.InputEvent(), dom.ChangeEvent()); err != nil {
		return err
	}
	if err := s.pacer.Sleep(ctx, s.opts.PostClearSettle); err != nil {
		return err
	}

	runes := []rune(job.Text)
	for i, r := range runes {
		prefix := string(runes[:i+1])
		err := keystroke(ctx, page, ref, r, func() error {
			return page.SetValue(ctx, ref, prefix)
		})
		if err != nil {
			return err
		}
		if err := s.between(ctx, i, len(runes), job.Delay); err != nil {
			return err
		}
	}
	return emit(ctx, page, ref, dom.ChangeEvent())
}

func (s *controlledInput) fallback(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	if err := page.SetValue(ctx, ref, job.Text); err != nil {
		return err
	}
	return emit(ctx, page, ref, dom.InputEvent(), dom.ChangeEvent())
}

func (s *controlledInput) readBack(ctx context.Context, job Job) (string, error) {
	return job.Page.Value(ctx, job.Target.Ref)
}
