// internal/bridge/host.go
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/snapshot"
)

// ErrEmptyDOM is reported when the webview answers get_dom with nothing.
var ErrEmptyDOM = errors.New("Retrieved DOM string is empty")

// Host is the application side of the bridge. It turns host commands into
// webview events, waits for the matching response and relays it. A guest is
// started for each window the first time it is addressed.
type Host struct {
	logger  *zap.Logger
	bus     *Bus
	pages   PageProvider
	handler Handler
	cfg     config.BridgeConfig
	render  *snapshot.Renderer

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	guests map[string]*Guest
	// inflight serializes requests per window and event. Responses carry no
	// id on the wire, so two outstanding requests of the same kind to the
	// same window could not be told apart by the webview. Requests of
	// different kinds run side by side.
	inflight map[string]*sync.Mutex
}

// NewHost creates a host on bus. Guests it starts run until Close.
func NewHost(logger *zap.Logger, bus *Bus, pages PageProvider, handler Handler, cfg config.BridgeConfig) *Host {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 5 * time.Second
	}
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		logger:   logger.Named("host"),
		bus:      bus,
		pages:    pages,
		handler:  handler,
		cfg:      cfg,
		render:   snapshot.NewRenderer(),
		ctx:      ctx,
		cancel:   cancel,
		guests:   make(map[string]*Guest),
		inflight: make(map[string]*sync.Mutex),
	}
}

// Dispatch runs one host command and always returns an envelope.
func (h *Host) Dispatch(ctx context.Context, req schemas.CommandRequest) schemas.Response {
	h.logger.Debug("Dispatching command.", zap.String("command", req.Command), zap.String("request_id", req.RequestID))

	switch req.Command {
	case schemas.CommandPing:
		return schemas.OK("pong")
	case schemas.CommandGetDOM:
		return h.getDOM(ctx, req.Payload)
	case schemas.CommandManageLocalStorage:
		var cmd schemas.StorageCommand
		if err := decodeCommand(req, &cmd); err != nil {
			return schemas.Fail(err)
		}
		return h.relay(ctx, cmd.Label(), schemas.EventGetLocalStorage,
			schemas.StorageRequest{Action: cmd.Action, Key: cmd.Key, Value: cmd.Value},
			h.cfg.LookupTimeout, "Timeout waiting for local storage result")
	case schemas.CommandExecuteJS:
		var cmd schemas.ExecuteJSCommand
		if err := decodeCommand(req, &cmd); err != nil {
			return schemas.Fail(err)
		}
		return h.relay(ctx, cmd.Label(), schemas.EventExecuteJS, cmd.Code,
			h.cfg.LookupTimeout, "Timeout waiting for script result")
	case schemas.CommandGetElementPosition:
		var cmd schemas.PositionCommand
		if err := decodeCommand(req, &cmd); err != nil {
			return schemas.Fail(err)
		}
		return h.relay(ctx, cmd.Label(), schemas.EventGetElementPosition, schemas.PositionRequest{
			SelectorType:   cmd.SelectorType,
			SelectorValue:  cmd.SelectorValue,
			ShouldClick:    cmd.ShouldClick,
			RawCoordinates: cmd.RawCoordinates,
		}, h.cfg.LookupTimeout, "Timeout waiting for element position result")
	case schemas.CommandSendTextToElement:
		var cmd schemas.TypeCommand
		if err := decodeCommand(req, &cmd); err != nil {
			return schemas.Fail(err)
		}
		delay := cmd.Delay()
		return h.relay(ctx, cmd.Label(), schemas.EventSendTextToElement, schemas.TypeRequest{
			SelectorType:  cmd.SelectorType,
			SelectorValue: cmd.SelectorValue,
			Text:          cmd.Text,
			DelayMs:       &delay,
		}, h.cfg.TypingTimeout, "Timeout waiting for text input completion")
	default:
		return schemas.Fail(fmt.Errorf("unknown command: %s", req.Command))
	}
}

func (h *Host) getDOM(ctx context.Context, payload json.RawMessage) schemas.Response {
	label, err := schemas.ParseWindowLabel(payload)
	if err != nil {
		return schemas.Fail(err)
	}
	format, err := snapshot.ParseFormat(schemas.ParseDOMFormat(payload))
	if err != nil {
		return schemas.Fail(err)
	}
	resp := h.relay(ctx, label, schemas.EventGetDOMContent, nil, h.cfg.LookupTimeout, "Timeout waiting for DOM")
	if !resp.Success {
		return resp
	}
	var markup string
	if raw, ok := resp.Data.(json.RawMessage); ok {
		if err := json.Unmarshal(raw, &markup); err != nil {
			return schemas.Fail(fmt.Errorf("failed to parse DOM content: %w", err))
		}
	}
	if markup == "" {
		return schemas.Fail(ErrEmptyDOM)
	}
	out, err := h.render.Render(markup, format)
	if err != nil {
		return schemas.Fail(err)
	}
	return schemas.OK(out)
}

func decodeCommand(req schemas.CommandRequest, v any) error {
	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("Invalid payload for %s: %w", req.Command, err)
	}
	return nil
}

// relay emits event to the window and waits up to timeout for its answer.
// The same deadline travels with the event, so the guest gives up on the
// work when the caller gives up on the answer.
func (h *Host) relay(ctx context.Context, label, event string, payload any, timeout time.Duration, timeoutMsg string) schemas.Response {
	if err := h.ensureGuest(ctx, label); err != nil {
		return schemas.Fail(err)
	}

	var body json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return schemas.Fail(fmt.Errorf("failed to encode %s payload: %w", event, err))
		}
		body = b
	}

	lock := h.lockFor(label, event)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replies, unlisten := h.bus.Listen(label, schemas.ResponseEvent(event))
	defer unlisten()

	deadline, _ := ctx.Deadline()
	id, err := h.bus.Post(ctx, Message{Window: label, Name: event, Deadline: deadline, Payload: body})
	if err != nil {
		return schemas.Fail(fmt.Errorf("Failed to emit %s event: %w", event, err))
	}

	for {
		select {
		case <-ctx.Done():
			return schemas.Fail(fmt.Errorf("%s: %w", timeoutMsg, ctx.Err()))
		case msg, ok := <-replies:
			if !ok {
				return schemas.Fail(fmt.Errorf("Failed to receive %s response: %w", event, ErrBusClosed))
			}
			if msg.ReplyTo != id {
				h.logger.Debug("Discarding stale response.", zap.String("event", msg.Name), zap.String("reply_to", msg.ReplyTo))
				continue
			}
			return decodeReply(msg.Payload)
		}
	}
}

func decodeReply(payload json.RawMessage) schemas.Response {
	var raw schemas.RawResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return schemas.Fail(fmt.Errorf("Failed to parse result: %w", err))
	}
	if !raw.Success {
		msg := raw.Error
		if msg == "" {
			msg = "Unknown error occurred"
		}
		resp := schemas.Response{Success: false, Error: msg}
		if len(raw.Data) > 0 {
			resp.Data = raw.Data
		}
		return resp
	}
	if len(raw.Data) == 0 {
		return schemas.OK(json.RawMessage("null"))
	}
	return schemas.OK(raw.Data)
}

func (h *Host) lockFor(label, event string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := label + "/" + event
	m, ok := h.inflight[key]
	if !ok {
		m = &sync.Mutex{}
		h.inflight[key] = m
	}
	return m
}

// ensureGuest checks that the window exists and starts its guest once.
func (h *Host) ensureGuest(ctx context.Context, label string) error {
	if _, err := h.pages.Page(ctx, label); err != nil {
		if errors.Is(err, browser.ErrWindowNotFound) {
			return fmt.Errorf("Window not found: %s", label)
		}
		return fmt.Errorf("window %s unavailable: %w", label, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return ErrBusClosed
	}
	if _, ok := h.guests[label]; !ok {
		g := NewGuest(h.logger, h.bus, h.pages, h.handler, label)
		g.Start(h.ctx)
		h.guests[label] = g
		h.logger.Info("Started guest for window.", zap.String("window", label))
	}
	return nil
}

// Close stops every guest.
func (h *Host) Close() {
	h.mu.Lock()
	h.cancel()
	guests := h.guests
	h.guests = make(map[string]*Guest)
	h.mu.Unlock()
	for _, g := range guests {
		g.Stop()
	}
}
