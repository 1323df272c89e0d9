package humanoid

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// Click dispatches pointerdown, pointerup and click at a viewport point.
// DOM event coordinates are viewport relative, so callers must not pass the
// scroll-compensated document point here. A failure is returned as the
// result, never as an error.
func Click(ctx context.Context, page dom.Input, ref dom.Ref, at schemas.Point) schemas.ClickResult {
	for _, ev := range dom.PointerSequence(at) {
		if _, err := page.Dispatch(ctx, ref, ev); err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrClickDispatch, ev.Type, err)
			return schemas.ClickResult{Success: false, Error: err.Error()}
		}
	}
	return schemas.ClickResult{Success: true}
}
