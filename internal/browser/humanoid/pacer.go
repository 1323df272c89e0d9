package humanoid

import (
	"context"
	"time"
)

// TimerPacer waits on a timer and gives up as soon as ctx is done.
type TimerPacer struct{}

func (TimerPacer) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Immediate never waits. It still honours cancellation.
type Immediate struct{}

func (Immediate) Sleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
