// internal/bridge/bus.go
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Post once Shutdown has started.
var ErrBusClosed = errors.New("event bus is shut down")

// Message is one event on the bus. Window and Name together form the topic,
// mirroring a webview event emitted to one window. ReplyTo links a response
// to the request that caused it; it is bus metadata and never part of the
// payload. A non-zero Deadline is when the sender stops waiting for the
// answer; the receiver abandons the work at that point.
type Message struct {
	ID        string
	Timestamp time.Time
	Window    string
	Name      string
	ReplyTo   string
	Deadline  time.Time
	Payload   json.RawMessage
}

type topic struct {
	window string
	name   string
}

type subscription struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func (s *subscription) cancel() { s.once.Do(func() { close(s.done) }) }

// Bus is an in-process pub/sub channel of named, per-window events.
type Bus struct {
	logger *zap.Logger

	subscribers map[topic][]*subscription
	mu          sync.RWMutex
	bufferSize  int

	// activePostsWg tracks Post calls that may still be sending.
	activePostsWg sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.Mutex
}

// NewBus creates a bus whose listener channels hold bufferSize messages.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:       logger.Named("event_bus"),
		subscribers:  make(map[topic][]*subscription),
		bufferSize:   bufferSize,
		shutdownChan: make(chan struct{}),
	}
}

// Post delivers msg to every listener of its window and name and returns
// the id it was assigned. It blocks while listener buffers are full. A
// message nobody listens for is dropped, like an event emitted to a window
// without a handler.
func (b *Bus) Post(ctx context.Context, msg Message) (string, error) {
	b.shutdownMu.Lock()
	if b.isShutdown {
		b.shutdownMu.Unlock()
		return "", ErrBusClosed
	}
	b.activePostsWg.Add(1)
	b.shutdownMu.Unlock()
	defer b.activePostsWg.Done()

	msg.ID = uuid.New().String()
	msg.Timestamp = time.Now().UTC()

	b.logger.Debug("Posting event",
		zap.String("window", msg.Window),
		zap.String("name", msg.Name),
		zap.String("id", msg.ID))

	b.mu.RLock()
	subs := b.subscribers[topic{msg.Window, msg.Name}]
	if len(subs) == 0 {
		b.mu.RUnlock()
		return msg.ID, nil
	}
	subsCopy := make([]*subscription, len(subs))
	copy(subsCopy, subs)
	b.mu.RUnlock()

	for _, sub := range subsCopy {
		select {
		case sub.ch <- msg:
		case <-sub.done:
			// Listener went away after the copy was taken.
		case <-ctx.Done():
			return msg.ID, ctx.Err()
		case <-b.shutdownChan:
			return msg.ID, ErrBusClosed
		}
	}
	return msg.ID, nil
}

// Listen returns a channel receiving the named events of one window, and a
// function that stops listening. The channel is closed by Shutdown only.
func (b *Bus) Listen(window string, names ...string) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed() {
		closedCh := make(chan Message)
		close(closedCh)
		return closedCh, func() {}
	}
	if len(names) == 0 {
		panic("must listen for at least one event name")
	}

	sub := &subscription{ch: make(chan Message, b.bufferSize), done: make(chan struct{})}
	topics := make([]topic, 0, len(names))
	for _, name := range names {
		t := topic{window, name}
		topics = append(topics, t)
		b.subscribers[t] = append(b.subscribers[t], sub)
	}

	unlisten := func() {
		sub.cancel()
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range topics {
			subs := b.subscribers[t]
			for i, s := range subs {
				if s == sub {
					copy(subs[i:], subs[i+1:])
					b.subscribers[t] = subs[:len(subs)-1]
					if len(b.subscribers[t]) == 0 {
						delete(b.subscribers, t)
					}
					break
				}
			}
		}
	}
	return sub.ch, unlisten
}

func (b *Bus) isClosed() bool {
	b.shutdownMu.Lock()
	defer b.shutdownMu.Unlock()
	return b.isShutdown
}

// Shutdown stops accepting posts, waits for in-flight posts and closes
// every remaining listener channel.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.logger.Info("Shutting down event bus...")

		b.shutdownMu.Lock()
		b.isShutdown = true
		b.shutdownMu.Unlock()

		close(b.shutdownChan)
		b.activePostsWg.Wait()

		b.mu.Lock()
		unique := make(map[*subscription]struct{})
		for _, subs := range b.subscribers {
			for _, s := range subs {
				unique[s] = struct{}{}
			}
		}
		for s := range unique {
			s.cancel()
			close(s.ch)
		}
		b.subscribers = make(map[topic][]*subscription)
		b.mu.Unlock()

		b.logger.Info("Event bus shut down.", zap.Int("listeners_closed", len(unique)))
	})
}
