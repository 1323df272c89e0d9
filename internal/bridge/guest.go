// internal/bridge/guest.go
package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// PageProvider hands out the live page behind a window label.
type PageProvider interface {
	Page(ctx context.Context, label string) (dom.Page, error)
}

// Handler runs one webview event. engine.Engine satisfies it.
type Handler interface {
	Handle(ctx context.Context, page dom.Page, event string, payload json.RawMessage) schemas.Response
}

// Guest is the webview side of the bridge for one window. It listens for
// the request events and answers each on its response event. Every event is
// handled on its own goroutine, so a long typing run or a script awaiting a
// promise never holds up a DOM read. Ordering between requests of the same
// name is the host's concern.
type Guest struct {
	logger  *zap.Logger
	bus     *Bus
	pages   PageProvider
	handler Handler
	label   string

	msgs      <-chan Message
	unlisten  func()
	cancel    context.CancelFunc
	done      chan struct{}
	inflight  sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewGuest creates a guest for one window. It starts listening immediately
// so that no event posted after NewGuest returns is dropped.
func NewGuest(logger *zap.Logger, bus *Bus, pages PageProvider, handler Handler, label string) *Guest {
	msgs, unlisten := bus.Listen(label, schemas.GuestEvents...)
	return &Guest{
		logger:   logger.Named("guest").With(zap.String("window", label)),
		bus:      bus,
		pages:    pages,
		handler:  handler,
		label:    label,
		msgs:     msgs,
		unlisten: unlisten,
		done:     make(chan struct{}),
	}
}

// Start runs the event loop until ctx is done, Stop is called or the bus
// shuts down.
func (g *Guest) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		ctx, g.cancel = context.WithCancel(ctx)
		go g.run(ctx)
	})
}

// Stop ends the loop, cancels the events in progress and waits for them.
func (g *Guest) Stop() {
	g.stopOnce.Do(func() {
		g.unlisten()
		if g.cancel == nil {
			close(g.done)
			return
		}
		g.cancel()
		<-g.done
	})
}

func (g *Guest) run(ctx context.Context) {
	defer close(g.done)
	defer g.inflight.Wait()
	g.logger.Debug("Guest listening.")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-g.msgs:
			if !ok {
				return
			}
			g.inflight.Add(1)
			go func() {
				defer g.inflight.Done()
				g.process(ctx, msg)
			}()
		}
	}
}

// process handles one event under its deadline and emits the answer. The
// answer is emitted even after the deadline; the host drops it as stale.
func (g *Guest) process(ctx context.Context, msg Message) {
	opCtx := ctx
	if !msg.Deadline.IsZero() {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithDeadline(ctx, msg.Deadline)
		defer cancel()
	}

	var resp schemas.Response
	page, err := g.pages.Page(opCtx, g.label)
	if err != nil {
		resp = schemas.Fail(err)
	} else {
		resp = g.handler.Handle(opCtx, page, msg.Name, msg.Payload)
	}
	if opCtx.Err() != nil && ctx.Err() == nil {
		g.logger.Debug("Event abandoned at its deadline.", zap.String("event", msg.Name), zap.String("id", msg.ID))
	}

	body, err := json.Marshal(resp)
	if err != nil {
		g.logger.Error("Failed to encode response.", zap.String("event", msg.Name), zap.Error(err))
		body, _ = json.Marshal(schemas.Fail(err))
	}

	reply := Message{
		Window:  g.label,
		Name:    schemas.ResponseEvent(msg.Name),
		ReplyTo: msg.ID,
		Payload: body,
	}
	if _, err := g.bus.Post(ctx, reply); err != nil {
		g.logger.Warn("Failed to emit response.", zap.String("event", reply.Name), zap.Error(err))
	}
}
