// internal/browser/manager_test.go
package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/webpilot/internal/config"
)

func TestAllocatorFlags(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser()
	cfg.DisableCache = true
	cfg.IgnoreTLSErrors = true
	cfg.Viewport = map[string]int{"width": 1280, "height": 720}
	cfg.Args = []string{"--lang=fr", "mute-audio", "  ", "--headless=new"}

	flags := allocatorFlags(cfg)
	byName := make(map[string]any)
	for _, f := range flags {
		byName[f.name] = f.value
	}

	assert.Equal(t, "*", byName["remote-allow-origins"])
	assert.Equal(t, "0", byName["disk-cache-size"])
	assert.Equal(t, true, byName["ignore-certificate-errors"])
	assert.Equal(t, "1280,720", byName["window-size"])
	assert.Equal(t, "fr", byName["lang"])
	assert.Equal(t, true, byName["mute-audio"])
	// The user supplied headless flag is applied last and wins.
	assert.Equal(t, "new", byName["headless"])
	assert.Equal(t, flag{"headless", "new"}, flags[len(flags)-1])
}

func TestAllocatorFlags_Minimal(t *testing.T) {
	cfg := config.BrowserConfig{Headless: false, Viewport: map[string]int{"width": 800}}

	flags := allocatorFlags(cfg)
	require.Len(t, flags, 5)
	assert.Equal(t, flag{"headless", false}, flags[0])
	for _, f := range flags {
		assert.NotEqual(t, "window-size", f.name, "a partial viewport should not set the window size")
	}
	assert.Len(t, DefaultAllocatorOptions(cfg), len(chromedp.DefaultExecAllocatorOptions)+len(flags))
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want flag
		ok   bool
	}{
		{"--proxy-server=http://127.0.0.1:8080", flag{"proxy-server", "http://127.0.0.1:8080"}, true},
		{"-incognito", flag{"incognito", true}, true},
		{"--user-agent=a=b", flag{"user-agent", "a=b"}, true},
		{"--", flag{}, false},
		{"", flag{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseArg(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickTarget(t *testing.T) {
	targets := []Target{
		{ID: "sw", Type: "service_worker", URL: "https://app.local/sw.js"},
		{ID: "p1", Type: "page", Title: "Main", URL: "tauri://localhost/index.html"},
		{ID: "p2", Type: "page", Title: "Settings", URL: "tauri://localhost/settings.html"},
	}

	tests := []struct {
		name    string
		label   string
		pattern string
		wantID  string
		wantErr bool
	}{
		{"main falls back to the first page", "main", "", "p1", false},
		{"main with a pattern", "main", "settings.html", "p2", false},
		{"label matches title", "Settings", "", "p2", false},
		{"pattern matches url", "prefs", "/settings", "p2", false},
		{"non-page targets are ignored", "worker", "sw.js", "", true},
		{"unknown label", "about", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickTarget(targets, tt.label, tt.pattern)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrWindowNotFound)
				assert.Contains(t, err.Error(), tt.label)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}

	_, err := pickTarget(nil, "main", "")
	assert.ErrorIs(t, err, ErrWindowNotFound)
}

func TestFromInfo(t *testing.T) {
	got := fromInfo([]*target.Info{{TargetID: "abc", Type: "page", Title: "T", URL: "about:blank"}})
	assert.Equal(t, []Target{{ID: "abc", Type: "page", Title: "T", URL: "about:blank"}}, got)
}

func TestDevtoolsBase(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://127.0.0.1:9222/devtools/browser/abc", "http://127.0.0.1:9222", false},
		{"wss://debug.example:443/devtools/browser/abc?x=1", "https://debug.example:443", false},
		{"http://localhost:9222/", "http://localhost:9222", false},
		{"ftp://localhost:9222", "", true},
		{"ws:///devtools", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := devtoolsBase(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestListTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/list" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"p1","type":"page","title":"Main","url":"tauri://localhost/","webSocketDebuggerUrl":"ws://x"},
			{"id":"w1","type":"worker","title":"","url":"blob:x"}
		]`))
	}))
	defer srv.Close()

	remote := "ws" + srv.URL[len("http"):] + "/devtools/browser/abc"
	got, err := listTargets(context.Background(), srv.Client(), remote)
	require.NoError(t, err)
	assert.Equal(t, []Target{
		{ID: "p1", Type: "page", Title: "Main", URL: "tauri://localhost/"},
		{ID: "w1", Type: "worker"},
	}, got)
}

func TestListTargets_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := listTargets(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestManager_AttachedTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"p1","type":"page","title":"Main","url":"tauri://localhost/"}]`))
	}))
	defer srv.Close()

	cfg := config.NewDefaultConfig().Browser()
	cfg.RemoteURL = srv.URL
	m := NewManager(cfg, zaptest.NewLogger(t))

	got, err := m.Targets(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)

	_, err = m.Page(context.Background(), "settings")
	assert.ErrorIs(t, err, ErrWindowNotFound)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	// A second shutdown is a no-op.
	require.NoError(t, m.Shutdown(ctx))
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	m := NewManager(config.BrowserConfig{}, zaptest.NewLogger(t))
	assert.NoError(t, m.Shutdown(context.Background()))
}
