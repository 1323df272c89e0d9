package humanoid

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// Traits are the facts about a node that decide its category.
type Traits struct {
	TextControl bool
	Editable    bool
	// LexicalMarker is set when the node declares the Lexical marker attribute.
	LexicalMarker bool
	// DraftMarker is set when the node contains the Draft marker element.
	DraftMarker bool
}

// Classify maps traits to a category. Order matters: native controls win
// over editable regions, and the attribute marker wins over the descendant one.
func Classify(t Traits) Category {
	switch {
	case t.TextControl:
		return CategoryControlledInput
	case t.Editable && t.LexicalMarker:
		return CategoryLexical
	case t.Editable && t.DraftMarker:
		return CategoryDraft
	case t.Editable:
		return CategoryGenericEditable
	default:
		return CategoryReadOnly
	}
}

// Inspect reads the traits of el from the live page. Marker probes that fail
// are logged and treated as absent.
func Inspect(ctx context.Context, logger *zap.Logger, page dom.Locator, el dom.Element, opts Options) Traits {
	t := Traits{TextControl: el.IsTextControl(), Editable: el.Editable}
	if t.TextControl || !t.Editable {
		return t
	}

	has, err := page.HasAttribute(ctx, el.Ref, opts.LexicalMarker)
	if err != nil {
		logger.Warn("Lexical marker probe failed.", zap.String("ref", string(el.Ref)), zap.Error(err))
	}
	t.LexicalMarker = has

	_, found, err := page.QuerySelector(ctx, el.Ref, opts.DraftMarker)
	if err != nil {
		logger.Warn("Draft marker probe failed.", zap.String("ref", string(el.Ref)), zap.Error(err))
	}
	t.DraftMarker = found
	return t
}
