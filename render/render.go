// Package render turns fetched documents into renderable snapshots: it
// extracts the title and body, optionally sanitizes the body HTML, and
// serializes each link together with the softnav attributes of its
// ancestor chain so the interception policy can run without a live DOM.
package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/softnav/session"
)

// Link is an anchor found in a document body, with enough attribute
// context for session.LinkVisitable and session.ActionForLink.
type Link struct {
	Href  string
	Chain *session.AttrElement
}

// Document is a parsed page.
type Document struct {
	Title    string
	BodyHTML []byte
	Links    []Link
}

// Renderer parses and prepares documents.
type Renderer struct {
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithSanitizer applies a bluemonday policy to extracted body HTML.
// Recommended when rendering bodies fetched from origins you do not
// fully control.
func WithSanitizer(p *bluemonday.Policy) Option {
	return func(r *Renderer) { r.sanitizer = p }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Parse extracts title, body HTML, and links from a raw document.
func (r *Renderer) Parse(body []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("render: parse document: %w", err)
	}

	doc := &Document{}
	bodyNode := findElement(root, atom.Body)
	if bodyNode == nil {
		return nil, fmt.Errorf("render: document has no body")
	}

	if titleNode := findElement(root, atom.Title); titleNode != nil {
		doc.Title = strings.TrimSpace(collectText(titleNode))
	}

	var buf bytes.Buffer
	for c := bodyNode.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return nil, fmt.Errorf("render: serialize body: %w", err)
		}
	}
	doc.BodyHTML = buf.Bytes()
	if r.sanitizer != nil {
		doc.BodyHTML = r.sanitizer.SanitizeBytes(doc.BodyHTML)
	}

	doc.Links = collectLinks(bodyNode)
	return doc, nil
}

// findElement returns the first element with the given tag, depth-first.
func findElement(n *html.Node, tag atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// collectLinks walks the body and serializes every anchor with an href,
// carrying the link's own attributes plus any ancestor elements that set
// the softnav marker.
func collectLinks(body *html.Node) []Link {
	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if href, ok := attrValue(n, "href"); ok {
				links = append(links, Link{Href: href, Chain: chainFor(n)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)
	return links
}

// chainFor builds the attribute chain for a link: the anchor itself, then
// each ancestor carrying the marker attribute, nearest first.
func chainFor(n *html.Node) *session.AttrElement {
	el := &session.AttrElement{Attrs: attrMap(n), TagVal: n.Data}
	cur := el
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := attrValue(p, session.MarkerAttr); !ok {
			continue
		}
		anc := &session.AttrElement{Attrs: attrMap(p), TagVal: p.Data}
		cur.Up = anc
		cur = anc
	}
	return el
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}
