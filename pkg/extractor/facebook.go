package extractor

import (
	"context"
	"net/url"
	"strings"

	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

var facebookHosts = []string{"facebook.com", "fb.com"}

// Paths that list many posts rather than showing one
var facebookFeedPaths = map[string]bool{
	"":              true,
	"home.php":      true,
	"watch":         true,
	"marketplace":   true,
	"notifications": true,
	"friends":       true,
	"groups/feed":   true,
}

// Facebook extracts images from a Facebook post or photo viewer
type Facebook struct {
	base
	strategies []Strategy
}

// NewFacebook creates a Facebook extractor for page
func NewFacebook(page dom.Page, opts Options) Extractor {
	p := profile{
		platform:   models.PlatformFacebook,
		hosts:      facebookHosts,
		cdnDomains: []string{"fbcdn.net"},
		landmarks:  []string{`[role="main"]`, `[role="article"]`, `[role="dialog"]`},
		isPost:     isFacebookPost,
	}
	policy := newHeuristicPolicy(opts.Config.Comments,
		[]string{`[role="article"][aria-label^="Comment" i]`, `[role="article"][aria-label^="Reply" i]`},
		`a[href^="/profile.php"], a[role="link"][href^="https://www.facebook.com/"]:not([href*="/photo"])`,
		`[aria-label="Like"]`,
	)
	policy.PostContainerSelectors = []string{`[role="dialog"]`, `[role="article"]`}

	return &Facebook{
		base: newBase(page, p, opts, policy),
		strategies: []Strategy{
			selectorStrategy("photo-viewer", true, `img[data-visualcompletion="media-vc-image"]`),
			{
				Name:     "article-images",
				MainPost: true,
				Find: func(doc *dom.Document) ([]dom.Element, error) {
					articles := doc.Find(`[role="article"]`)
					if len(articles) == 0 {
						return nil, nil
					}
					return articles[0].Find("img"), nil
				},
			},
			selectorStrategy("descriptive-alt", true,
				`img[alt^="May be an image" i]`,
				`img[alt^="Photo by" i]`,
			),
			selectorStrategy("fallback-all-images", false, `[role="dialog"] img`, `[role="main"] img`),
		},
	}
}

// isFacebookPost treats everything except the known feed surfaces as a
// post. Post URLs take too many shapes to enumerate.
func isFacebookPost(u *url.URL) bool {
	path := strings.Trim(strings.ToLower(u.Path), "/")
	if facebookFeedPaths[path] {
		return path == "watch" && u.Query().Get("v") != ""
	}
	return true
}

func (f *Facebook) ExtractImages(ctx context.Context) ([]models.ImageRecord, error) {
	return f.extract(ctx, func(_ context.Context, doc *dom.Document) ([]candidate, error) {
		return f.runStrategies(doc, f.strategies), nil
	})
}
