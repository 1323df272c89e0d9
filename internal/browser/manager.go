// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
	"github.com/xkilldash9x/webpilot/internal/browser/session"
	"github.com/xkilldash9x/webpilot/internal/config"
)

const shutdownGracePeriod = 10 * time.Second

// window is an attached page target.
type window struct {
	session *session.Session
	cancel  context.CancelFunc
}

// Manager owns the browser connection and maps window labels to page
// sessions. It either attaches to a running browser (browser.remote_url) or
// launches one. Connection is deferred until the first window is requested.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig
	client *http.Client

	startMu     sync.Mutex
	started     bool
	allocCtx    context.Context
	allocCancel context.CancelFunc
	// rootCtx is the launched browser's first tab. It is nil when attached.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	windows map[string]*window
}

// NewManager creates a manager. Nothing is started until Page is called.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	if cfg.TargetTimeout <= 0 {
		cfg.TargetTimeout = 15 * time.Second
	}
	m := &Manager{
		logger:  logger.Named("browser_manager"),
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.TargetTimeout},
		windows: make(map[string]*window),
	}
	m.logger.Info("Browser manager created (connection deferred).", zap.Bool("attach", cfg.RemoteURL != ""))
	return m
}

func (m *Manager) attached() bool { return m.cfg.RemoteURL != "" }

func (m *Manager) contextOptions() []chromedp.ContextOption {
	sugar := m.logger.Sugar()
	opts := []chromedp.ContextOption{
		chromedp.WithLogf(sugar.Infof),
		chromedp.WithErrorf(sugar.Errorf),
	}
	if m.cfg.Debug {
		opts = append(opts, chromedp.WithDebugf(sugar.Debugf))
	}
	return opts
}

// start connects to or launches the browser. A failed start is retried on
// the next request.
func (m *Manager) start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if m.started {
		return nil
	}

	if m.attached() {
		m.allocCtx, m.allocCancel = chromedp.NewRemoteAllocator(context.Background(), m.cfg.RemoteURL)
		m.started = true
		m.logger.Info("Attached to remote browser.", zap.String("remote_url", m.cfg.RemoteURL))
		return nil
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), DefaultAllocatorOptions(m.cfg)...)
	m.rootCtx, m.rootCancel = chromedp.NewContext(m.allocCtx, m.contextOptions()...)

	startURL := m.cfg.StartURL
	if startURL == "" {
		startURL = "about:blank"
	}
	// The first Run launches the process; it must run on rootCtx itself,
	// since cancelling a derived context there would close the browser.
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(m.rootCtx, chromedp.Navigate(startURL)) }()
	select {
	case err := <-errc:
		if err != nil {
			m.rootCancel()
			m.allocCancel()
			return fmt.Errorf("failed to launch browser: %w", err)
		}
	case <-ctx.Done():
		m.rootCancel()
		m.allocCancel()
		return fmt.Errorf("launching browser: %w", ctx.Err())
	}
	m.started = true
	m.logger.Info("Browser launched.", zap.String("start_url", startURL))
	return nil
}

// Page returns the page for a window label, attaching on first use and
// reattaching when the previous target went away.
func (m *Manager) Page(ctx context.Context, label string) (dom.Page, error) {
	if strings.TrimSpace(label) == "" {
		label = schemas.DefaultWindowLabel
	}
	if err := m.start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[label]; ok {
		if w.session.Alive() {
			return w.session, nil
		}
		m.logger.Info("Window target went away, reattaching.", zap.String("window", label))
		delete(m.windows, label)
	}

	w, err := m.attach(ctx, label)
	if err != nil {
		return nil, err
	}
	m.windows[label] = w
	return w.session, nil
}

// Targets lists the browser's targets.
func (m *Manager) Targets(ctx context.Context) ([]Target, error) {
	if err := m.start(ctx); err != nil {
		return nil, err
	}
	if m.attached() {
		return listTargets(ctx, m.client, m.cfg.RemoteURL)
	}
	infos, err := chromedp.Targets(m.rootCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return fromInfo(infos), nil
}

func (m *Manager) attach(ctx context.Context, label string) (*window, error) {
	pattern := m.cfg.Windows[label]

	if !m.attached() && label == schemas.DefaultWindowLabel && pattern == "" {
		// The launched browser's first tab is the main window.
		return &window{session: session.New(m.rootCtx, label, m.logger), cancel: func() {}}, nil
	}

	targets, err := m.Targets(ctx)
	if err != nil {
		return nil, err
	}
	t, err := pickTarget(targets, label, pattern)
	if errors.Is(err, ErrWindowNotFound) && !m.attached() && looksLikeURL(pattern) {
		return m.open(ctx, label, pattern)
	}
	if err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(m.allocCtx, append(m.contextOptions(), chromedp.WithTargetID(target.ID(t.ID)))...)
	if err := m.firstRun(ctx, tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("attach to window %s: %w", label, err)
	}
	m.logger.Info("Attached to window.", zap.String("window", label), zap.String("target", t.ID), zap.String("url", t.URL))
	return &window{session: session.New(tabCtx, label, m.logger), cancel: cancel}, nil
}

// open creates a new tab for a launched browser.
func (m *Manager) open(ctx context.Context, label, rawURL string) (*window, error) {
	tabCtx, cancel := chromedp.NewContext(m.rootCtx, m.contextOptions()...)
	if err := m.firstRun(ctx, tabCtx, chromedp.Navigate(rawURL)); err != nil {
		cancel()
		return nil, fmt.Errorf("open window %s: %w", label, err)
	}
	m.logger.Info("Opened window.", zap.String("window", label), zap.String("url", rawURL))
	return &window{session: session.New(tabCtx, label, m.logger), cancel: cancel}, nil
}

// firstRun binds a fresh chromedp context to its target within the target
// timeout without deriving a cancellable child from it.
func (m *Manager) firstRun(ctx context.Context, tabCtx context.Context, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.TargetTimeout)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(tabCtx, actions...) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "file://") || strings.HasPrefix(s, "about:")
}

// Shutdown detaches every window and closes the browser connection. A
// launched browser process is terminated; an attached one is left running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.Lock()
	windows := m.windows
	m.windows = make(map[string]*window)
	m.mu.Unlock()
	for _, w := range windows {
		w.cancel()
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false

	done := make(chan struct{})
	go func() {
		if m.rootCancel != nil {
			m.rootCancel()
		}
		m.allocCancel()
		close(done)
	}()

	grace, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()
	select {
	case <-done:
		m.logger.Info("Browser manager shutdown complete.")
		return nil
	case <-grace.Done():
		m.logger.Warn("Timed out waiting for the browser to close.", zap.Error(grace.Err()))
		return fmt.Errorf("browser shutdown: %w", grace.Err())
	}
}
