// Package snapshot renders a serialized document in the formats a client
// can ask get_dom for.
package snapshot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Format names an output rendering.
type Format string

const (
	// FormatHTML is the document exactly as serialized by the page.
	FormatHTML Format = "html"
	// FormatSanitized drops scripts, styles, event handlers and anything
	// else a user generated content policy would not allow.
	FormatSanitized Format = "sanitized"
	// FormatMarkdown is CommonMark with tables.
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned for format names outside the set above.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// ParseFormat maps a wire name to a Format. The empty string is HTML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatSanitized, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Renderer converts serialized documents. It is safe for concurrent use.
type Renderer struct {
	md     *converter.Converter
	policy *bluemonday.Policy
}

// NewRenderer builds a renderer with the CommonMark and table plugins.
func NewRenderer() *Renderer {
	return &Renderer{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render returns markup in the requested format.
func (r *Renderer) Render(markup string, format Format) (string, error) {
	switch format {
	case "", FormatHTML:
		return markup, nil
	case FormatSanitized:
		return r.policy.Sanitize(markup), nil
	case FormatMarkdown:
		out, err := r.md.ConvertString(markup)
		if err != nil {
			return "", fmt.Errorf("convert to markdown: %w", err)
		}
		return strings.TrimSpace(out), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}
