package humanoid

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// draft types into an editor that accepts document editing commands directly.
type draft struct{ base }

func (s *draft) Category() Category { return CategoryDraft }

func (s *draft) Type(ctx context.Context, job Job) (Outcome, error) {
	return s.run(ctx, s.Category(), s, job)
}

func (s *draft) keystrokes(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	if err := s.focus(ctx, page, ref); err != nil {
		return err
	}

	for _, cmd := range []string{"selectAll", "delete"} {
		if _, err := page.ExecCommand(ctx, cmd, ""); err != nil {
			return fmt.Errorf("clear (%s): %w", cmd, err)
		}
	}
	if err := s.pacer.Sleep(ctx, s.opts.PostClearSettle); err != nil {
		return err
	}

	runes := []rune(job.Text)
	for i, r := range runes {
		ch := string(r)
		err := keystroke(ctx, page, ref, r, func() error {
			ok, err := page.ExecCommand(ctx, "insertText", ch)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("insertText command was not executed")
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := s.between(ctx, i, len(runes), job.Delay); err != nil {
			return err
		}
	}
	return nil
}

// fallback writes into the editor's inner content region when present.
func (s *draft) fallback(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	target := ref
	if inner, ok, err := page.QuerySelector(ctx, ref, s.opts.DraftMarker); err == nil && ok {
		target = inner
	}
	if err := page.SetTextContent(ctx, target, job.Text); err != nil {
		return err
	}
	return emit(ctx, page, ref, dom.InputEvent())
}

func (s *draft) readBack(ctx context.Context, job Job) (string, error) {
	return job.Page.TextContent(ctx, job.Target.Ref)
}
