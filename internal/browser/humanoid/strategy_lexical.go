package humanoid

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

const emptyParagraph = "<p><br></p>"

// lexical types into an editor that reconciles from its own document model
// and may veto an insertion by cancelling beforeinput.
type lexical struct{ base }

func (s *lexical) Category() Category { return CategoryLexical }

func (s *lexical) Type(ctx context.Context, job Job) (Outcome, error) {
	return s.run(ctx, s.Category(), s, job)
}

func (s *lexical) keystrokes(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	if err := s.focus(ctx, page, ref); err != nil {
		return err
	}

	if err := page.SetInnerHTML(ctx, ref, emptyParagraph); err != nil {
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
		// The editor may move focus between its own nodes, so the event
		// target is re-read for every character.
		target := ref
		if active, ok, err := page.ActiveElement(ctx); err == nil && ok {
			target = active
		}

		accepted, err := page.Dispatch(ctx, target, dom.BeforeInput(ch))
		if err != nil {
			return fmt.Errorf("beforeinput %q: %w", r, err)
		}
		err = keystroke(ctx, page, target, r, func() error {
			if !accepted {
				return nil
			}
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

	if p, ok, err := page.QuerySelector(ctx, ref, "p"); err == nil && ok {
		if err := page.SelectEnd(ctx, p); err != nil {
			s.logger.Debug("Could not move selection to paragraph end.", zap.Error(err))
		}
	}
	return nil
}

func (s *lexical) fallback(ctx context.Context, job Job) error {
	page, ref := job.Page, job.Target.Ref
	target := ref
	if p, ok, err := page.QuerySelector(ctx, ref, "p"); err == nil && ok {
		target = p
	}
	if err := page.SetTextContent(ctx, target, job.Text); err != nil {
		return err
	}
	return emit(ctx, page, ref, dom.InputEvent())
}

func (s *lexical) readBack(ctx context.Context, job Job) (string, error) {
	return job.Page.TextContent(ctx, job.Target.Ref)
}
