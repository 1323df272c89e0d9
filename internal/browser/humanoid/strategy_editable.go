package humanoid

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// genericEditable types into a contenteditable region with no known editor
// by inserting text nodes at the caret through the range API.
type genericEditable struct{ base }

func (s *genericEditable) Category() Category { return CategoryGenericEditable }

func (s *genericEditable) Type(ctx context.Context, job Job) (Outcome, error) {
	return s.run(ctx, s.Category(), s, job)
}

func (s *genericEditable) keystrokes(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	if err := s.focus(ctx, page, ref); err != nil {
		return err
	}

	if err := page.SetTextContent(ctx, ref, ""); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	if err := emit(ctx, page, ref, dom.InputEvent()); err != nil {
		return err
	}
	if err := s.pacer.Sleep(ctx, s.opts.PostClearSettle); err != nil {
		return err
	}

	runes := []rune(job.Text)
	for i, r := range runes {
		ch := string(r)
		err := keystroke(ctx, page, ref, r, func() error {
			return page.InsertTextAtEnd(ctx, ref, ch)
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

func (s *genericEditable) fallback(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	if err := page.SetTextContent(ctx, ref, job.Text); err != nil {
		return err
	}
	return emit(ctx, page, ref, dom.InputEvent())
}

func (s *genericEditable) readBack(ctx context.Context, job Job) (string, error) {
	return job.Page.TextContent(ctx, job.Target.Ref)
}
