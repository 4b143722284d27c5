package dom

import (
	"context"
	"errors"
	"os"
)

// Page is the live page an extractor works against. Snapshot is the only
// way to read it; Click is the single write action, used to advance
// carousels.
type Page interface {
	URL() string
	Snapshot(ctx context.Context) (*Document, error)
	Click(ctx context.Context, selector string) error
}

// ErrReadOnly is returned by pages that cannot be interacted with
var ErrReadOnly = errors.New("page is read-only")

// StaticPage serves a fixed HTML capture, such as a page saved from the
// browser
type StaticPage struct {
	url    string
	markup string
	sizes  map[string]Size
}

// NewStaticPage wraps markup captured from pageURL
func NewStaticPage(pageURL, markup string) *StaticPage {
	return &StaticPage{url: pageURL, markup: markup}
}

// LoadStaticPage reads a saved HTML file
func LoadStaticPage(pageURL, path string) (*StaticPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticPage(pageURL, string(data)), nil
}

// WithSizes attaches rendered sizes keyed by absolute image URL
func (p *StaticPage) WithSizes(sizes map[string]Size) *StaticPage {
	p.sizes = sizes
	return p
}

func (p *StaticPage) URL() string {
	return p.url
}

func (p *StaticPage) Snapshot(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := NewDocumentFromHTML(p.url, p.markup)
	if err != nil {
		return nil, err
	}
	doc.SetRenderedSizes(p.sizes)
	return doc, nil
}

func (p *StaticPage) Click(context.Context, string) error {
	return ErrReadOnly
}
