package extractor

import (
	"context"
	"net/url"
	"strings"

	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

var threadsHosts = []string{"threads.net", "threads.com"}

// Threads extracts images from a single Threads post
type Threads struct {
	base
	strategies []Strategy
}

// NewThreads creates a Threads extractor for page
func NewThreads(page dom.Page, opts Options) Extractor {
	p := profile{
		platform:   models.PlatformThreads,
		hosts:      threadsHosts,
		cdnDomains: []string{"cdninstagram.com", "fbcdn.net"},
		landmarks:  []string{"div[data-pressable-container]", `[role="main"] picture`},
		isPost:     isThreadsPost,
	}
	policy := newHeuristicPolicy(opts.Config.Comments,
		[]string{`[data-testid*="reply"]`, `[aria-label*="Reply" i][role="article"]`},
		`a[href^="/@"]`,
		`svg[aria-label="Like"]`,
	)
	policy.PostContainerSelectors = []string{`div[data-pressable-container]`}

	return &Threads{
		base: newBase(page, p, opts, policy),
		strategies: []Strategy{
			{
				Name:     "main-post-container",
				MainPost: true,
				Find: func(doc *dom.Document) ([]dom.Element, error) {
					containers := doc.Find("div[data-pressable-container]")
					if len(containers) == 0 {
						return nil, nil
					}
					return containers[0].Find("img"), nil
				},
			},
			selectorStrategy("picture-elements", true, "picture img"),
			selectorStrategy("descriptive-alt", true,
				`img[alt^="Photo by" i]`,
				`img[alt^="May be an image" i]`,
			),
			selectorStrategy("fallback-all-images", false, `[role="main"] img`, "img"),
		},
	}
}

// isThreadsPost accepts /@user/post/<id> and /t/<id>
func isThreadsPost(u *url.URL) bool {
	segs := pathSegments(u)
	switch {
	case len(segs) >= 3 && strings.HasPrefix(segs[0], "@") && segs[1] == "post":
		return true
	case len(segs) >= 2 && segs[0] == "t":
		return true
	}
	return false
}

func (t *Threads) ExtractImages(ctx context.Context) ([]models.ImageRecord, error) {
	return t.extract(ctx, func(_ context.Context, doc *dom.Document) ([]candidate, error) {
		return t.runStrategies(doc, t.strategies), nil
	})
}
