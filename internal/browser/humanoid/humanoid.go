// internal/browser/humanoid/humanoid.go
package humanoid

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// readOnly assigns text directly. No keystrokes are simulated.
type readOnly struct{ base }

func (s *readOnly) Category() Category { return CategoryReadOnly }

func (s *readOnly) Type(ctx context.Context, job Job) (Outcome, error) {
	s.logger.Warn("Element is not editable, assigning text content directly.",
		zap.String("ref", string(job.Target.Ref)), zap.String("tag", job.Target.Tag))
	if err := job.Page.SetTextContent(ctx, job.Target.Ref, job.Text); err != nil {
		return Outcome{Category: CategoryReadOnly}, fmt.Errorf("%w: direct assignment: %w", ErrTyping, err)
	}
	return Outcome{Category: CategoryReadOnly, Reason: "element is not editable"}, nil
}

// Typist selects a strategy for a resolved element and runs it.
type Typist struct {
	logger     *zap.Logger
	opts       Options
	strategies map[Category]Strategy
}

// New builds a Typist with one strategy per category. A nil pacer waits on
// real timers.
func New(logger *zap.Logger, opts Options, pacer Pacer) *Typist {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pacer == nil {
		pacer = TimerPacer{}
	}
	logger = logger.Named("humanoid")
	b := base{logger: logger, opts: opts, pacer: pacer}

	t := &Typist{logger: logger, opts: opts, strategies: make(map[Category]Strategy)}
	for _, s := range []Strategy{
		&readOnly{b},
		&controlledInput{b},
		&genericEditable{b},
		&lexical{b},
		&draft{b},
	} {
		t.strategies[s.Category()] = s
	}
	for _, c := range Categories {
		if _, ok := t.strategies[c]; !ok {
			panic(fmt.Sprintf("humanoid: no strategy registered for %s", c))
		}
	}
	return t
}

// Strategy returns the strategy registered for c.
func (t *Typist) Strategy(c Category) Strategy {
	return t.strategies[c]
}

// Classify inspects el on the live page and returns its category.
func (t *Typist) Classify(ctx context.Context, page dom.Locator, el dom.Element) Category {
	return Classify(Inspect(ctx, t.logger, page, el, t.opts))
}

// Type classifies el and types text into it with delay between characters.
func (t *Typist) Type(ctx context.Context, page dom.Page, el dom.Element, text string, delay time.Duration) (Outcome, error) {
	cat := t.Classify(ctx, page, el)
	t.logger.Debug("Typing into element.",
		zap.String("ref", string(el.Ref)),
		zap.Stringer("category", cat),
		zap.Int("length", len([]rune(text))),
		zap.Duration("delay", delay))

	return t.strategies[cat].Type(ctx, Job{Page: page, Target: el, Text: text, Delay: delay})
}
