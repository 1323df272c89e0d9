package domtest

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// walk visits n and its descendants in document order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attrOK(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, name string) string {
	v, _ := attrOK(n, name)
	return v
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

func hasClasses(n *html.Node, want []string) bool {
	have := strings.Fields(attr(n, "class"))
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// isContentEditable mirrors HTMLElement.isContentEditable inheritance.
func isContentEditable(n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		if v, ok := attrOK(c, "contenteditable"); ok {
			switch strings.ToLower(v) {
			case "", "true", "plaintext-only":
				return true
			case "false":
				return false
			}
		}
	}
	return false
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// removeText drops every text node under n, keeping element structure.
func removeText(n *html.Node) {
	var texts []*html.Node
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			texts = append(texts, c)
		}
		return true
	})
	for _, t := range texts {
		t.Parent.RemoveChild(t)
	}
}

func appendText(n *html.Node, text string) {
	if last := n.LastChild; last != nil && last.Type == html.TextNode {
		last.Data += text
		return
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// -- compound selectors --

type attrCond struct {
	name   string
	value  string
	exists bool
}

type selector struct {
	tag     string
	id      string
	classes []string
	attrs   []attrCond
}

func parseSelector(css string) (selector, error) {
	var s selector
	rest := strings.TrimSpace(css)
	if rest == "" {
		return s, fmt.Errorf("domtest: empty selector")
	}
	i := 0
	for i < len(rest) && rest[i] != '#' && rest[i] != '.' && rest[i] != '[' {
		i++
	}
	s.tag = strings.ToLower(rest[:i])
	rest = rest[i:]
	for rest != "" {
		switch rest[0] {
		case '#', '.':
			j := 1
			for j < len(rest) && rest[j] != '#' && rest[j] != '.' && rest[j] != '[' {
				j++
			}
			if rest[0] == '#' {
				s.id = rest[1:j]
			} else {
				s.classes = append(s.classes, rest[1:j])
			}
			rest = rest[j:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return s, fmt.Errorf("domtest: unterminated attribute selector in %q", css)
			}
			body := rest[1:end]
			rest = rest[end+1:]
			name, value, hasValue := strings.Cut(body, "=")
			cond := attrCond{name: strings.TrimSpace(name), exists: !hasValue}
			if hasValue {
				cond.value = strings.Trim(strings.TrimSpace(value), `"'`)
			}
			s.attrs = append(s.attrs, cond)
		default:
			return s, fmt.Errorf("domtest: unsupported selector %q", css)
		}
	}
	return s, nil
}

func (s selector) match(n *html.Node) bool {
	if s.tag != "" && s.tag != "*" && !strings.EqualFold(n.Data, s.tag) {
		return false
	}
	if s.id != "" && attr(n, "id") != s.id {
		return false
	}
	if len(s.classes) > 0 && !hasClasses(n, s.classes) {
		return false
	}
	for _, a := range s.attrs {
		v, ok := attrOK(n, a.name)
		if !ok || (!a.exists && v != a.value) {
			return false
		}
	}
	return true
}

// nonRendering lists the containers a text query always returns.
var nonRendering = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true,
}

// textCandidate mirrors the page-side filter for text queries. q is
// lower case and trimmed.
func textCandidate(n *html.Node, q string) bool {
	has := func(s string) bool { return s != "" && strings.Contains(strings.ToLower(s), q) }
	ph := attr(n, "placeholder")
	return has(textContent(n)) || has(ph) || (ph != "" && strings.Contains(q, strings.ToLower(ph))) ||
		has(attr(n, "title")) || has(attr(n, "aria-label"))
}
