// internal/browser/targets.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/target"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// ErrWindowNotFound is returned when no page target matches a window label.
var ErrWindowNotFound = errors.New("window not found")

// Target is a page target as the devtools endpoint reports it.
type Target struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func fromInfo(infos []*target.Info) []Target {
	out := make([]Target, 0, len(infos))
	for _, in := range infos {
		out = append(out, Target{ID: string(in.TargetID), Type: in.Type, Title: in.Title, URL: in.URL})
	}
	return out
}

// pickTarget chooses the page target backing label. pattern is the
// configured match for the label; an empty pattern means the label itself,
// except for the main window, which falls back to the first page.
func pickTarget(targets []Target, label, pattern string) (Target, error) {
	var pages []Target
	for _, t := range targets {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	if pattern == "" && label != schemas.DefaultWindowLabel {
		pattern = label
	}
	if pattern != "" {
		for _, p := range pages {
			if strings.Contains(p.URL, pattern) || strings.Contains(p.Title, pattern) {
				return p, nil
			}
		}
	} else if len(pages) > 0 {
		return pages[0], nil
	}
	return Target{}, fmt.Errorf("%w: %s", ErrWindowNotFound, label)
}

// devtoolsBase derives the HTTP endpoint of a devtools URL, which may be
// given as ws://host:port/devtools/browser/<id> or http://host:port.
func devtoolsBase(remote string) (*url.URL, error) {
	u, err := url.Parse(remote)
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported remote url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("remote url %q has no host", remote)
	}
	u.Path, u.RawQuery, u.Fragment = "", "", ""
	return u, nil
}

// listTargets reads /json/list from a remote browser. Listing over HTTP does
// not open a tab the way a first CDP Run on a fresh context does.
func listTargets(ctx context.Context, client *http.Client, remote string) ([]Target, error) {
	base, err := devtoolsBase(remote)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.JoinPath("json", "list").String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list targets: unexpected status %s", resp.Status)
	}
	var targets []Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("decode target list: %w", err)
	}
	return targets, nil
}
