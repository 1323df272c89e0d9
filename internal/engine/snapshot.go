package engine

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// DocumentContent returns the serialized document. While the document is
// still loading it returns "" so a caller never sees a half-parsed tree.
func (e *Engine) DocumentContent(ctx context.Context, page dom.Document) (string, error) {
	markup, state, err := page.DocumentHTML(ctx)
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	if state == "loading" {
		return "", nil
	}
	return markup, nil
}
