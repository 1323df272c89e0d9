package engine

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// Location is an element's live geometry in both coordinate spaces.
type Location struct {
	Rect           schemas.Rect
	ViewportCenter schemas.Point
	// DocumentPoint is ViewportCenter shifted by the scroll offset read in
	// the same pass as Rect.
	DocumentPoint schemas.Point
	Window        schemas.WindowMetrics
}

// Locate reads layout for ref. Nothing is cached: every call asks the page.
func Locate(ctx context.Context, page dom.Geometry, ref dom.Ref) (Location, error) {
	rect, err := page.BoundingRect(ctx, ref)
	if err != nil {
		return Location{}, fmt.Errorf("read bounding rect: %w", err)
	}
	win, err := page.Window(ctx)
	if err != nil {
		return Location{}, fmt.Errorf("read window metrics: %w", err)
	}
	center := rect.Center()
	return Location{
		Rect:           rect,
		ViewportCenter: center,
		DocumentPoint:  center.Add(win.Scroll()),
		Window:         win,
	}, nil
}
