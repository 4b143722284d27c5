package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/metrics"
)

func testOptions() Options {
	cfg := config.DefaultConfig().Extraction
	cfg.ValidateTimeout = 50 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	cfg.Carousel.SettleDelay = 0
	return Options{
		Config:  cfg,
		Logger:  logger.NewNopLogger(),
		Metrics: metrics.NewIsolated(),
	}
}

// sequencePage serves a different markup on every snapshot, repeating the
// last one once exhausted.
type sequencePage struct {
	url     string
	markups []string
	mu      sync.Mutex
	calls   int
}

func (p *sequencePage) URL() string { return p.url }

func (p *sequencePage) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	i := p.calls
	if i >= len(p.markups) {
		i = len(p.markups) - 1
	}
	p.calls++
	p.mu.Unlock()
	return dom.NewDocumentFromHTML(p.url, p.markups[i])
}

func (p *sequencePage) Click(context.Context, string) error { return dom.ErrReadOnly }

// virtualCarousel renders an N-slide carousel of which only a window of
// slides around the current one is mounted. Slides are emitted in reverse
// DOM order; their translateX offsets carry the visual order.
type virtualCarousel struct {
	mu sync.Mutex

	n       int
	window  int
	current int
	// stickyNext keeps the Next button enabled on the last slide
	stickyNext bool
	// emptyReads is the number of leading snapshots rendered without slides
	emptyReads int
	// thumbnails are slides rendered below the minimum size
	thumbnails map[int]bool
	onClick    func()

	clicks    int
	snapshots int
}

func slideURL(k int) string {
	return fmt.Sprintf("https://scontent.cdninstagram.com/v/t51.2885-15/slide%d_n.jpg?stp=dst-jpg_e35&_nc_ht=x", k)
}

func (v *virtualCarousel) URL() string { return "https://www.instagram.com/p/CAROUSEL123/" }

func (v *virtualCarousel) mounted() []int {
	lo, hi := v.current, v.current+1
	if v.window >= 3 {
		lo = v.current - 1
	}
	var out []int
	for k := lo; k <= hi; k++ {
		if k >= 0 && k < v.n {
			out = append(out, k)
		}
	}
	return out
}

func (v *virtualCarousel) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshots++

	var b strings.Builder
	b.WriteString(`<html><body><main><article><div role="presentation"><ul>`)
	if v.snapshots > v.emptyReads {
		slides := v.mounted()
		for i := len(slides) - 1; i >= 0; i-- {
			k := slides[i]
			side := 1080
			if v.thumbnails[k] {
				side = 40
			}
			fmt.Fprintf(&b, `<li style="transform: translateX(%dpx)"><div><img src="%s" width="%d" height="%d" alt="Slide %d"></div></li>`,
				k*468, slideURL(k), side, side, k)
		}
	}
	b.WriteString(`</ul></div>`)
	if v.current < v.n-1 || v.stickyNext {
		b.WriteString(`<button aria-label="Next"></button>`)
	}
	b.WriteString(`</article></main></body></html>`)

	return dom.NewDocumentFromHTML(v.URL(), b.String())
}

func (v *virtualCarousel) Click(ctx context.Context, selector string) error {
	v.mu.Lock()
	v.clicks++
	if v.current < v.n-1 {
		v.current++
	}
	hook := v.onClick
	v.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// filler returns n empty elements, used to push nodes apart in DOM order
func filler(n int) string {
	return strings.Repeat("<span></span>", n)
}
