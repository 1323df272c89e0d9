// FILE: ./internal/browser/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webpilot/internal/browser/dom"
	"github.com/xkilldash9x/webpilot/internal/browser/dom/domtest"
)

// recordingPacer records every requested wait without sleeping. When
// cancelAfter is positive, the cancel func runs on that call.
type recordingPacer struct {
	mu          sync.Mutex
	durations   []time.Duration
	cancelAfter int
	cancel      context.CancelFunc
}

func (r *recordingPacer) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.durations = append(r.durations, d)
	n := len(r.durations)
	r.mu.Unlock()
	if r.cancelAfter > 0 && n == r.cancelAfter && r.cancel != nil {
		r.cancel()
	}
	return ctx.Err()
}

func (r *recordingPacer) waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.durations...)
}

// testOptions uses distinct settle values so recorded waits are attributable.
func testOptions() Options {
	opts := DefaultOptions()
	opts.FocusSettle = 100 * time.Millisecond
	opts.PostClearSettle = 50 * time.Millisecond
	return opts
}

func newTestTypist(t *testing.T) (*Typist, *recordingPacer) {
	t.Helper()
	pacer := &recordingPacer{}
	return New(zaptest.NewLogger(t), testOptions(), pacer), pacer
}

// describe snapshots the first element matching css.
func describe(t *testing.T, p *domtest.Page, css string) dom.Element {
	t.Helper()
	el, err := p.Describe(context.Background(), p.Find(css))
	if err != nil {
		t.Fatalf("describe %s: %v", css, err)
	}
	return el
}

// keystrokeEvents is the event trace one character produces.
func keystrokeEvents(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		out = append(out, "keydown", "input", "keyup")
	}
	return out
}
