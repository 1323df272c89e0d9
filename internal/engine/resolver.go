package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser/dom"
)

// Target is the element chosen for one request. It is never re-resolved.
type Target struct {
	Element     dom.Element
	Diagnostics []string
}

// ignoredContainers hold text that is never rendered.
var ignoredContainers = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

// Resolver turns a selector into exactly one element.
type Resolver struct {
	logger         *zap.Logger
	previewLen     int
	maxSuggestions int
}

// NewResolver builds a resolver. previewLen bounds text quoted in
// diagnostics; maxSuggestions bounds each suggestion list.
func NewResolver(logger *zap.Logger, previewLen, maxSuggestions int) *Resolver {
	if previewLen <= 0 {
		previewLen = 100
	}
	if maxSuggestions <= 0 {
		maxSuggestions = 5
	}
	return &Resolver{logger: logger.Named("resolver"), previewLen: previewLen, maxSuggestions: maxSuggestions}
}

// Resolve finds the element named by sel.
func (r *Resolver) Resolve(ctx context.Context, page dom.Locator, sel schemas.Selector) (Target, error) {
	if !sel.Kind.Valid() {
		return Target{}, fmt.Errorf("%w: %s", ErrSelectorUnsupported, sel.Kind)
	}
	els, err := page.Query(ctx, sel.Kind, sel.Value)
	if err != nil {
		return Target{}, fmt.Errorf("query %s: %w", sel, err)
	}

	var target Target
	if sel.Kind == schemas.SelectorText {
		target, err = r.resolveText(els, sel)
	} else {
		target, err = r.resolveFirst(els, sel)
	}
	if err != nil {
		r.logger.Debug("Selector did not resolve.", zap.Stringer("selector", sel), zap.Error(err))
		return Target{}, err
	}
	r.logger.Debug("Selector resolved.",
		zap.Stringer("selector", sel),
		zap.String("element", label(target.Element)),
		zap.Strings("diagnostics", target.Diagnostics))
	return target, nil
}

// resolveFirst handles id, class and tag: first match in document order wins.
func (r *Resolver) resolveFirst(els []dom.Element, sel schemas.Selector) (Target, error) {
	switch n := len(els); {
	case n == 0:
		return Target{}, &ResolutionError{
			Selector:    sel,
			Diagnostics: []string{fmt.Sprintf("no element matches %s %q", sel.Kind, sel.Value)},
		}
	case n == 1:
		return Target{Element: els[0]}, nil
	default:
		return Target{
			Element:     els[0],
			Diagnostics: []string{fmt.Sprintf("found %d elements matching %s %q, using the first", n, sel.Kind, sel.Value)},
		}, nil
	}
}

// textMatch compares an element's trimmed text, placeholder, title or
// aria-label against the query.
type textMatch func(candidate, query string) bool

func exact(candidate, query string) bool { return candidate == query }

func contains(candidate, query string) bool {
	return candidate != "" && strings.Contains(candidate, query)
}

// resolveText runs the exact pass, then the substring pass. An exact match
// anywhere beats a substring match earlier in the document.
func (r *Resolver) resolveText(els []dom.Element, sel schemas.Selector) (Target, error) {
	query := strings.TrimSpace(sel.Value)
	visible := visibleElements(els)
	if query == "" {
		return Target{}, &ResolutionError{Selector: sel, Diagnostics: r.suggest(els, visible, query)}
	}

	for _, pass := range []struct {
		name  string
		match textMatch
	}{
		{"exact", exact},
		{"partial", contains},
	} {
		if el, how, ok := firstTextHit(els, visible, query, pass.match); ok {
			target := Target{Element: el}
			if pass.name == "partial" {
				target.Diagnostics = append(target.Diagnostics,
					fmt.Sprintf("no exact match for %q, using partial %s match on %s", query, how, label(el)))
			}
			return target, nil
		}
	}

	return Target{}, &ResolutionError{Selector: sel, Diagnostics: r.suggest(els, visible, query)}
}

// visibleElements marks elements that are not inside a non-rendered container.
func visibleElements(els []dom.Element) []bool {
	visible := make([]bool, len(els))
	for i, el := range els {
		if ignoredContainers[strings.ToLower(el.Tag)] {
			continue
		}
		p := el.Parent
		visible[i] = p < 0 || p >= len(els) || visible[p]
	}
	return visible
}

// firstTextHit returns the first element in document order matching query.
// A text-content match only counts on the innermost element: an ancestor
// whose text matches only because of a matching descendant is skipped.
func firstTextHit(els []dom.Element, visible []bool, query string, match textMatch) (dom.Element, string, bool) {
	textHit := make([]bool, len(els))
	descendantHit := make([]bool, len(els))
	for i := len(els) - 1; i >= 0; i-- {
		hit := match(els[i].Text, query)
		textHit[i] = hit && visible[i]
		// Hidden hits still propagate: an ancestor's text includes script text.
		if p := els[i].Parent; p >= 0 && p < len(els) && (hit || descendantHit[i]) {
			descendantHit[p] = true
		}
	}

	for i, el := range els {
		if !visible[i] {
			continue
		}
		switch {
		case textHit[i] && !descendantHit[i]:
			return el, "text", true
		case el.AcceptsPlaceholder() && match(el.Placeholder, query):
			return el, "placeholder", true
		case match(el.Title, query):
			return el, "title", true
		case match(el.AriaLabel, query):
			return el, "aria-label", true
		}
	}
	return dom.Element{}, "", false
}

// suggest builds the failure diagnostics for a text selector. The result is
// never empty.
func (r *Resolver) suggest(els []dom.Element, visible []bool, query string) []string {
	diags := []string{fmt.Sprintf("no element has text, placeholder, title or aria-label matching %q", query)}
	lq := strings.ToLower(query)
	if lq == "" {
		return append(diags, "the text selector value is empty")
	}

	var texts, placeholders []string
	descendantHit := make([]bool, len(els))
	for i := len(els) - 1; i >= 0; i-- {
		el := els[i]
		hit := strings.Contains(strings.ToLower(el.Text), lq)
		if p := el.Parent; p >= 0 && p < len(els) && (hit || descendantHit[i]) {
			descendantHit[p] = true
		}
		if !visible[i] {
			continue
		}
		if hit && !descendantHit[i] {
			texts = append(texts, fmt.Sprintf("%s contains %q", label(el), truncate(el.Text, r.previewLen)))
		}
		if el.AcceptsPlaceholder() && el.Placeholder != "" && similar(el.Placeholder, lq) {
			placeholders = append(placeholders, fmt.Sprintf("%s has placeholder %q", label(el), el.Placeholder))
		}
	}
	// Collected back to front; report in document order.
	reverse(texts)
	reverse(placeholders)

	if len(texts) > 0 {
		diags = append(diags, "elements with similar text: "+strings.Join(limit(texts, r.maxSuggestions), ", "))
	}
	if len(placeholders) > 0 {
		diags = append(diags, "inputs with similar placeholders: "+strings.Join(limit(placeholders, r.maxSuggestions), ", "))
	}
	if len(texts) == 0 && len(placeholders) == 0 {
		diags = append(diags, "no similar text or placeholders found")
	}
	return diags
}

// similar is a case-insensitive containment test in either direction.
func similar(placeholder, lowerQuery string) bool {
	lp := strings.ToLower(placeholder)
	return strings.Contains(lp, lowerQuery) || strings.Contains(lowerQuery, lp)
}

// label renders an element as tag#id.class for diagnostics.
func label(el dom.Element) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(el.Tag))
	if el.ID != "" {
		sb.WriteString("#" + el.ID)
	}
	for _, c := range strings.Fields(el.Classes) {
		sb.WriteString("." + c)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return append(s[:n:n], fmt.Sprintf("and %d more", len(s)-n))
	}
	return s
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
