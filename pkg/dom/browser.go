package dom

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
)

const clickTimeout = 5 * time.Second

// renderedSizesJS collects natural image sizes for every loaded <img>
const renderedSizesJS = `(() => {
  const out = {};
  for (const img of document.images) {
    if (!img.naturalWidth) continue;
    const size = {w: img.naturalWidth, h: img.naturalHeight};
    if (img.currentSrc) out[img.currentSrc] = size;
    if (img.src) out[img.src] = size;
  }
  return out;
})()`

// BrowserPage is a page rendered by a headless Chrome instance
type BrowserPage struct {
	url         string
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      logger.Logger
}

// OpenBrowserPage starts a browser, navigates to rawURL and waits for the
// body to be ready.
func OpenBrowserPage(ctx context.Context, rawURL string, cfg config.BrowserConfig, log logger.Logger) (*BrowserPage, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1280, 1600),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	p := &BrowserPage{
		url:         rawURL,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		logger:      log.WithField("component", "browser"),
	}

	// The first Run starts the browser; it must use the tab context itself
	// so the browser outlives the navigation timeout below.
	if err := chromedp.Run(tabCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	timeout := cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	err := p.run(ctx, timeout,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("navigate to %s: %w", rawURL, err)
	}

	p.logger.DebugWithFields("page loaded", map[string]interface{}{"url": rawURL})
	return p, nil
}

// run executes actions on the tab, bounded by both ctx and timeout
func (p *BrowserPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *BrowserPage) URL() string {
	return p.url
}

// Snapshot captures the current DOM together with natural image sizes
func (p *BrowserPage) Snapshot(ctx context.Context) (*Document, error) {
	var (
		markup string
		sizes  map[string]Size
	)
	err := p.run(ctx, 15*time.Second,
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Evaluate(renderedSizesJS, &sizes),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	doc, err := NewDocumentFromHTML(p.url, markup)
	if err != nil {
		return nil, err
	}
	doc.SetRenderedSizes(sizes)
	return doc, nil
}

// Click clicks the first visible element matching selector
func (p *BrowserPage) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, clickTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// Close shuts the tab and the browser down
func (p *BrowserPage) Close() {
	p.cancelTab()
	p.cancelAlloc()
}
