package dom

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// Size is a rendered or declared image size in CSS pixels. Zero means unknown.
type Size struct {
	Width  int `json:"w"`
	Height int `json:"h"`
}

// Document is a read-only snapshot of a rendered page
type Document struct {
	doc   *goquery.Document
	base  *url.URL
	order map[*html.Node]int
	sizes map[string]Size
}

// NewDocument parses r as HTML captured from pageURL
func NewDocument(pageURL string, r io.Reader) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	d := &Document{
		doc:   gq,
		base:  base,
		order: make(map[*html.Node]int),
		sizes: make(map[string]Size),
	}
	d.indexNodes(gq.Nodes...)
	return d, nil
}

// NewDocumentFromHTML is NewDocument over a string
func NewDocumentFromHTML(pageURL, markup string) (*Document, error) {
	return NewDocument(pageURL, strings.NewReader(markup))
}

// indexNodes assigns every element its position in document order
func (d *Document) indexNodes(roots ...*html.Node) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.order[n] = len(d.order)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range roots {
		walk(root)
	}
}

// SetRenderedSizes records natural image sizes keyed by absolute image URL
func (d *Document) SetRenderedSizes(sizes map[string]Size) {
	for src, s := range sizes {
		d.sizes[src] = s
	}
}

// URL returns the page URL the snapshot was taken from
func (d *Document) URL() *url.URL {
	return d.base
}

// Resolve makes ref absolute against the page URL
func (d *Document) Resolve(ref string) string {
	return urlutil.Resolve(d.base, ref)
}

// Find returns every element matching selector in document order
func (d *Document) Find(selector string) []Element {
	return d.wrap(d.doc.Find(selector))
}

// Exists reports whether any element matches selector
func (d *Document) Exists(selector string) bool {
	return d.doc.Find(selector).Length() > 0
}

// ElementCount returns the number of elements in the snapshot
func (d *Document) ElementCount() int {
	return len(d.order)
}

func (d *Document) wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Element{sel: s, doc: d})
	})
	return out
}

// Element is a single node of a Document
type Element struct {
	sel *goquery.Selection
	doc *Document
}

// Valid reports whether e refers to a node
func (e Element) Valid() bool {
	return e.sel != nil && e.sel.Length() > 0
}

// Node returns the underlying html node
func (e Element) Node() *html.Node {
	if !e.Valid() {
		return nil
	}
	return e.sel.Get(0)
}

// Tag returns the lowercased tag name
func (e Element) Tag() string {
	if !e.Valid() {
		return ""
	}
	return goquery.NodeName(e.sel)
}

// Attr returns the value of attribute name
func (e Element) Attr(name string) (string, bool) {
	if !e.Valid() {
		return "", false
	}
	return e.sel.Attr(name)
}

// AttrOr returns attribute name or def when absent
func (e Element) AttrOr(name, def string) string {
	if !e.Valid() {
		return def
	}
	return e.sel.AttrOr(name, def)
}

// Index returns the element's position in document order, or -1
func (e Element) Index() int {
	if e.doc == nil {
		return -1
	}
	if i, ok := e.doc.order[e.Node()]; ok {
		return i
	}
	return -1
}

// Is reports whether the element matches selector
func (e Element) Is(selector string) bool {
	return e.Valid() && e.sel.Is(selector)
}

// Closest returns the nearest ancestor-or-self matching selector
func (e Element) Closest(selector string) (Element, bool) {
	if !e.Valid() {
		return Element{}, false
	}
	c := e.sel.Closest(selector)
	if c.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: c.First(), doc: e.doc}, true
}

// Ancestors returns the element's ancestors, nearest first
func (e Element) Ancestors() []Element {
	if !e.Valid() {
		return nil
	}
	return e.doc.wrap(e.sel.Parents())
}

// Parent returns the direct parent element
func (e Element) Parent() (Element, bool) {
	if !e.Valid() {
		return Element{}, false
	}
	p := e.sel.Parent()
	if p.Length() == 0 {
		return Element{}, false
	}
	return Element{sel: p, doc: e.doc}, true
}

// Find returns descendants matching selector
func (e Element) Find(selector string) []Element {
	if !e.Valid() {
		return nil
	}
	return e.doc.wrap(e.sel.Find(selector))
}

// Text returns the trimmed text content
func (e Element) Text() string {
	if !e.Valid() {
		return ""
	}
	return strings.TrimSpace(e.sel.Text())
}

// Document returns the snapshot e belongs to
func (e Element) Document() *Document {
	return e.doc
}

var pxValue = regexp.MustCompile(`^\s*(\d+)`)

// Size returns the image size from width/height attributes, falling back
// to the rendered size captured with the snapshot.
func (e Element) Size() Size {
	s := Size{
		Width:  parsePixels(e.AttrOr("width", "")),
		Height: parsePixels(e.AttrOr("height", "")),
	}
	if s.Width > 0 && s.Height > 0 {
		return s
	}

	for _, attr := range []string{"src", "data-src"} {
		if v, ok := e.Attr(attr); ok && v != "" {
			if r, ok := e.doc.sizes[e.doc.Resolve(v)]; ok {
				if s.Width == 0 {
					s.Width = r.Width
				}
				if s.Height == 0 {
					s.Height = r.Height
				}
				break
			}
		}
	}
	return s
}

func parsePixels(v string) int {
	m := pxValue.FindStringSubmatch(v)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
