package extractor

import (
	"context"
	"net/url"

	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

var instagramHosts = []string{"instagram.com"}

var instagramPostKinds = map[string]bool{"p": true, "reel": true, "reels": true, "tv": true}

// Instagram extracts images from a single Instagram post, walking the
// carousel when the post has several slides.
type Instagram struct {
	base
	strategies []Strategy
	carousel   *carousel
}

// NewInstagram creates an Instagram extractor for page
func NewInstagram(page dom.Page, opts Options) Extractor {
	p := profile{
		platform:   models.PlatformInstagram,
		hosts:      instagramHosts,
		cdnDomains: []string{"cdninstagram.com", "fbcdn.net"},
		landmarks:  []string{"article", `[role="dialog"] img`, "main img"},
		isPost:     isInstagramPost,
	}
	policy := newHeuristicPolicy(opts.Config.Comments,
		[]string{`ul ul li`, `[aria-label*="Comment" i][role="button"] img`},
		`header a[href^="/"], ul li h3 a[href^="/"]`,
		`svg[aria-label="Like"]`,
	)
	policy.PostContainerSelectors = []string{`article header`, `article`}

	ig := &Instagram{
		base: newBase(page, p, opts, policy),
		strategies: []Strategy{
			selectorStrategy("main-media", true,
				`article div[role="presentation"] img`,
				`article div._aagv img`,
			),
			{
				Name:     "article-images",
				MainPost: true,
				Find: func(doc *dom.Document) ([]dom.Element, error) {
					articles := doc.Find("article")
					if len(articles) == 0 {
						return nil, nil
					}
					return articles[0].Find("img"), nil
				},
			},
			selectorStrategy("descriptive-alt", true,
				`img[alt^="Photo by" i]`,
				`img[alt^="May be an image" i]`,
			),
			selectorStrategy("fallback-all-images", false, `[role="dialog"] img`, "main img"),
		},
	}
	ig.carousel = newCarousel(&ig.base, page, opts.Config.Carousel)
	return ig
}

// isInstagramPost accepts /p/<id>, /reel/<id>, /tv/<id> and the same
// shapes nested under a username
func isInstagramPost(u *url.URL) bool {
	segs := pathSegments(u)
	switch {
	case len(segs) >= 2 && instagramPostKinds[segs[0]]:
		return true
	case len(segs) >= 3 && instagramPostKinds[segs[1]]:
		return true
	}
	return false
}

func (ig *Instagram) ExtractImages(ctx context.Context) ([]models.ImageRecord, error) {
	return ig.extract(ctx, func(ctx context.Context, doc *dom.Document) ([]candidate, error) {
		if ig.carousel.detect(doc) {
			ig.log.Debug("carousel detected")
			cands, err := ig.carousel.run(ctx, doc)
			if err != nil || len(cands) > 0 {
				return cands, err
			}
			ig.log.Debug("carousel yielded nothing, falling back to strategies")
		}
		return ig.runStrategies(doc, ig.strategies), nil
	})
}
