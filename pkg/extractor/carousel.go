package extractor

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/retry"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

type carouselState int

const (
	stateAwaitingSlide carouselState = iota
	stateCaptureVisible
	stateRequestAdvance
	stateWaitForUpdate
	stateTerminal
)

// CarouselCursor is the navigation state of one carousel walk
type CarouselCursor struct {
	// Position is the logical index of the last captured image, 1-based
	Position int
	// SeenURLs holds normalized URLs and is the only dedup authority
	SeenURLs map[string]struct{}
	// ConsecutiveEmptyAdvances counts advances that revealed nothing new
	ConsecutiveEmptyAdvances int
	// EmptyReads counts reads in a row that found no slides at all
	EmptyReads int
	Advances   int
}

func newCursor() *CarouselCursor {
	return &CarouselCursor{SeenURLs: make(map[string]struct{})}
}

var translateX = regexp.MustCompile(`translateX\(\s*(-?[0-9.]+)px`)

const nextSelector = `button[aria-label="Next"]`

// carousel walks a virtualized slide list, where only the current slide
// and its neighbours are mounted at any time.
type carousel struct {
	b              *base
	page           dom.Page
	cfg            config.CarouselConfig
	slideSelectors []string
}

func newCarousel(b *base, page dom.Page, cfg config.CarouselConfig) *carousel {
	if cfg.StagnantAdvances <= 0 {
		cfg.StagnantAdvances = 1
	}
	if cfg.EmptyReadRetries < 0 {
		cfg.EmptyReadRetries = 0
	}
	return &carousel{
		b:              b,
		page:           page,
		cfg:            cfg,
		slideSelectors: []string{
			`article div[role="presentation"] ul li`,
			`[role="dialog"] div[role="presentation"] ul li`,
			"ul._acay li",
		},
	}
}

func (c *carousel) detect(doc *dom.Document) bool {
	return len(c.mountedSlides(doc)) > 1 || doc.Exists(nextSelector)
}

// mountedSlides returns the slides holding an image, in visual order
func (c *carousel) mountedSlides(doc *dom.Document) []dom.Element {
	if doc == nil {
		return nil
	}
	var slides []dom.Element
	for _, sel := range c.slideSelectors {
		for _, li := range doc.Find(sel) {
			if len(li.Find("img")) > 0 {
				slides = append(slides, li)
			}
		}
		if len(slides) > 0 {
			break
		}
	}

	offsets := make([]float64, len(slides))
	for i, s := range slides {
		off, ok := slideOffset(s)
		if !ok {
			// without offsets on every slide, DOM order is the best guess
			return slides
		}
		offsets[i] = off
	}
	idx := make([]int, len(slides))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return offsets[idx[a]] < offsets[idx[b]] })

	ordered := make([]dom.Element, len(slides))
	for i, j := range idx {
		ordered[i] = slides[j]
	}
	return ordered
}

func slideOffset(slide dom.Element) (float64, bool) {
	styles := []string{slide.AttrOr("style", "")}
	for _, child := range slide.Find("[style]") {
		styles = append(styles, child.AttrOr("style", ""))
	}
	for _, style := range styles {
		if m := translateX.FindStringSubmatch(style); m != nil {
			v, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func nextEnabled(doc *dom.Document) bool {
	if doc == nil {
		return false
	}
	buttons := doc.Find(nextSelector)
	if len(buttons) == 0 {
		return false
	}
	btn := buttons[0]
	if _, disabled := btn.Attr("disabled"); disabled {
		return false
	}
	return btn.AttrOr("aria-disabled", "false") != "true"
}

// run drives the state machine starting from an already taken snapshot
func (c *carousel) run(ctx context.Context, first *dom.Document) ([]candidate, error) {
	cursor := newCursor()
	var (
		results []candidate
		current *dom.Document
		slides  []dom.Element
		pending = first
		state   = stateAwaitingSlide
		reason  string
	)

	for state != stateTerminal {
		if err := ctx.Err(); err != nil {
			return results, errs.Wrap(errs.ErrorTypeCancelled, err, "carousel navigation cancelled")
		}

		switch state {
		case stateAwaitingSlide:
			current = pending
			pending = nil
			if current == nil {
				doc, err := c.page.Snapshot(ctx)
				if err != nil {
					if ctx.Err() != nil {
						continue
					}
					c.b.log.WithError(err).Debug("carousel snapshot failed")
				}
				current = doc
			}

			slides = c.mountedSlides(current)
			if len(slides) == 0 {
				if cursor.EmptyReads < c.cfg.EmptyReadRetries {
					cursor.EmptyReads++
					state = stateWaitForUpdate
					continue
				}
				reason = "no slides rendered"
				state = stateTerminal
				continue
			}
			cursor.EmptyReads = 0
			state = stateCaptureVisible

		case stateCaptureVisible:
			fresh := c.capture(slides, cursor, &results)
			if cursor.Advances > 0 {
				if fresh == 0 {
					cursor.ConsecutiveEmptyAdvances++
				} else {
					cursor.ConsecutiveEmptyAdvances = 0
				}
			}

			switch {
			case c.cfg.MaxImages > 0 && len(results) >= c.cfg.MaxImages:
				reason = "max images reached"
				state = stateTerminal
			case cursor.ConsecutiveEmptyAdvances >= c.cfg.StagnantAdvances:
				reason = "no new slides after advancing"
				state = stateTerminal
			default:
				state = stateRequestAdvance
			}

		case stateRequestAdvance:
			if !nextEnabled(current) {
				reason = "next control absent or disabled"
				state = stateTerminal
				continue
			}
			if err := c.page.Click(ctx, nextSelector); err != nil {
				if ctx.Err() != nil {
					continue
				}
				c.b.log.WithError(err).Warn("carousel advance failed")
				reason = "advance failed"
				state = stateTerminal
				continue
			}
			cursor.Advances++
			state = stateWaitForUpdate

		case stateWaitForUpdate:
			if err := retry.Wait(ctx, c.cfg.SettleDelay); err != nil {
				continue
			}
			state = stateAwaitingSlide
		}
	}

	c.b.log.DebugWithFields("carousel finished", map[string]interface{}{
		"images":   len(results),
		"advances": cursor.Advances,
		"reason":   reason,
	})
	return results, nil
}

// capture records every unseen slide image and returns how many URLs were
// seen for the first time, whether or not the filter accepted them.
func (c *carousel) capture(slides []dom.Element, cursor *CarouselCursor, results *[]candidate) int {
	fresh := 0
	for _, slide := range slides {
		if c.cfg.MaxImages > 0 && len(*results) >= c.cfg.MaxImages {
			break
		}
		imgs := slide.Find("img")
		if len(imgs) == 0 {
			continue
		}
		cand, ok := candidateFromImage(slide.Document(), imgs[0])
		if !ok {
			continue
		}

		key := urlutil.NormalizeURL(cand.fullSize)
		if _, seen := cursor.SeenURLs[key]; seen {
			continue
		}
		cursor.SeenURLs[key] = struct{}{}
		fresh++

		if reason, ok := c.b.accept(cand); !ok {
			c.b.excluded(reason, cand)
			continue
		}

		cursor.Position++
		cand.position = cursor.Position
		cand.strategy = "carousel"
		cand.mainPost = true
		*results = append(*results, cand)
	}
	return fresh
}
