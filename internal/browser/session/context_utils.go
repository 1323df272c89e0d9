// internal/browser/session/context_utils.go
package session

import (
	"context"
)

// CombineContext returns a context carrying the values of session (the CDP
// target context) that is cancelled when either session or op is done.
// chromedp locates the target through context values, so operations must run
// on a context derived from session while honouring the caller's deadline.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)
	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// Detach returns a context that keeps the values of ctx but ignores its
// cancellation and deadline. Cleanup that must reach the target after the
// request context ends runs on it.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
