package extractor

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/metrics"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/retry"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// Extractor finds the images of a single post on a rendered page
type Extractor interface {
	Platform() models.Platform
	IsSupported(rawURL string) bool
	// ValidatePage fails with a feed_page error on feed URLs and with
	// page_not_ready when no landmark appears before the timeout.
	ValidatePage(ctx context.Context) error
	// ExtractImages returns an empty slice, not an error, when a valid
	// post has no images.
	ExtractImages(ctx context.Context) ([]models.ImageRecord, error)
}

// Options carries what every extractor needs besides the page
type Options struct {
	Config  config.ExtractionConfig
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// Policy overrides the platform's default comment exclusion policy
	Policy ExclusionPolicy
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// profile describes what differs between platforms in the shared flow
type profile struct {
	platform   models.Platform
	hosts      []string
	cdnDomains []string
	landmarks  []string
	isPost     func(u *url.URL) bool
}

// base implements the parts of Extractor shared by every platform
type base struct {
	page    dom.Page
	profile profile
	cfg     config.ExtractionConfig
	log     logger.Logger
	metrics *metrics.Metrics
	policy  ExclusionPolicy
	now     func() time.Time

	altExclusion *regexp.Regexp
}

func newBase(page dom.Page, p profile, opts Options, defaultPolicy ExclusionPolicy) base {
	opts = opts.withDefaults()
	policy := opts.Policy
	if policy == nil {
		policy = defaultPolicy
	}
	if !opts.Config.Comments.Enabled {
		policy = nil
	}

	return base{
		page:         page,
		profile:      p,
		cfg:          opts.Config,
		log:          opts.Logger.WithField("platform", string(p.platform)),
		metrics:      opts.Metrics,
		policy:       policy,
		now:          opts.Now,
		altExclusion: wordPattern(opts.Config.ExclusionWords),
	}
}

func wordPattern(words []string) *regexp.Regexp {
	var quoted []string
	for _, w := range words {
		if w = strings.TrimSpace(strings.ToLower(w)); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

func (b *base) Platform() models.Platform {
	return b.profile.platform
}

func (b *base) IsSupported(rawURL string) bool {
	return matchesHosts(urlutil.Hostname(rawURL), b.profile.hosts)
}

func matchesHosts(host string, patterns []string) bool {
	if host == "" {
		return false
	}
	for _, p := range patterns {
		if urlutil.HostMatches(host, p) {
			return true
		}
	}
	return false
}

// checkURL rejects pages this extractor cannot work on without looking at
// the DOM.
func (b *base) checkURL() error {
	u, err := urlutil.ParseHTTPURL(b.page.URL())
	if err != nil || !matchesHosts(strings.ToLower(u.Hostname()), b.profile.hosts) {
		return errs.New(errs.ErrorTypePlatformNotSupported, "%s extractor cannot handle %q", b.profile.platform, b.page.URL())
	}
	if !b.profile.isPost(u) {
		return errs.New(errs.ErrorTypeFeedPage, "%q is a feed or home page, not a single post", b.page.URL())
	}
	return nil
}

func (b *base) hasLandmark(doc *dom.Document) bool {
	for _, sel := range b.profile.landmarks {
		if doc.Exists(sel) {
			return true
		}
	}
	return false
}

func (b *base) ValidatePage(ctx context.Context) error {
	_, err := b.awaitLandmarks(ctx)
	return err
}

// awaitLandmarks polls snapshots until a landmark is present. It returns the
// last snapshot taken even when it fails, so extraction can still be
// attempted on a slow page.
func (b *base) awaitLandmarks(ctx context.Context) (*dom.Document, error) {
	if err := b.checkURL(); err != nil {
		return nil, err
	}

	deadline := b.now().Add(b.cfg.ValidateTimeout)
	var last *dom.Document
	for {
		doc, err := b.page.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, errs.Wrap(errs.ErrorTypeCancelled, ctx.Err(), "page validation cancelled")
			}
			b.log.WithError(err).Debug("snapshot failed while waiting for landmarks")
		} else {
			last = doc
			if b.hasLandmark(doc) {
				return doc, nil
			}
		}

		if !b.now().Before(deadline) {
			return last, errs.New(errs.ErrorTypePageNotReady, "post content did not render within %s", b.cfg.ValidateTimeout)
		}
		if err := retry.Wait(ctx, b.cfg.PollInterval); err != nil {
			return last, errs.Wrap(errs.ErrorTypeCancelled, err, "page validation cancelled")
		}
	}
}

// extract runs the shared extraction flow around a platform-specific
// collect step.
func (b *base) extract(ctx context.Context, collect func(ctx context.Context, doc *dom.Document) ([]candidate, error)) ([]models.ImageRecord, error) {
	start := b.now()
	doc, readyErr := b.awaitLandmarks(ctx)
	if readyErr != nil && (doc == nil || !errs.Is(readyErr, errs.ErrorTypePageNotReady)) {
		logger.LogExtraction(b.log, string(b.profile.platform), b.page.URL(), 0, readyErr)
		return nil, readyErr
	}

	cands, err := collect(ctx, doc)
	if err != nil {
		logger.LogExtraction(b.log, string(b.profile.platform), b.page.URL(), len(cands), err)
		return nil, err
	}

	images := b.buildRecords(cands)
	b.metrics.ObserveExtraction(string(b.profile.platform), b.now().Sub(start).Seconds())

	if len(images) == 0 && readyErr != nil {
		logger.LogExtraction(b.log, string(b.profile.platform), b.page.URL(), 0, readyErr)
		return nil, readyErr
	}
	logger.LogExtraction(b.log, string(b.profile.platform), b.page.URL(), len(images), nil)
	return images, nil
}

// accept applies the filters every platform shares. It returns the reason
// when the candidate is rejected.
func (b *base) accept(c candidate) (string, bool) {
	u, err := urlutil.ParseHTTPURL(c.fullSize)
	if err != nil {
		return "non-http", false
	}
	if !matchesHosts(strings.ToLower(u.Hostname()), b.profile.cdnDomains) {
		return "foreign-domain", false
	}
	if c.size.Width > 0 && c.size.Width < b.cfg.MinWidth {
		return "too-small", false
	}
	if c.size.Height > 0 && c.size.Height < b.cfg.MinHeight {
		return "too-small", false
	}

	lowerURL := strings.ToLower(c.fullSize)
	for _, w := range b.cfg.ExclusionWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" && strings.Contains(lowerURL, w) {
			return "vocabulary", false
		}
	}
	if b.altExclusion != nil && c.alt != "" && b.altExclusion.MatchString(strings.ToLower(c.alt)) {
		return "vocabulary", false
	}
	return "", true
}

func (b *base) filter(cands []candidate) []candidate {
	out := cands[:0:0]
	for _, c := range cands {
		if reason, ok := b.accept(c); !ok {
			b.excluded(reason, c)
			continue
		}
		out = append(out, c)
	}
	return out
}

// contentFiltered reports whether alt names a known false positive
func (b *base) contentFiltered(alt string) bool {
	if alt == "" {
		return false
	}
	lower := strings.ToLower(alt)
	for _, phrase := range b.cfg.ContentFilterPhrases {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" && strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// postFilter applies the comment exclusion policy and the alt content
// filter to deduplicated candidates.
func (b *base) postFilter(doc *dom.Document, cands []candidate) []candidate {
	out := cands[:0:0]
	for _, c := range cands {
		if b.policy != nil && c.el.Valid() {
			if reason, excluded := b.policy.Exclude(doc, c.el); excluded {
				b.excluded(reason, c)
				continue
			}
		}
		if b.contentFiltered(c.alt) {
			b.excluded("content-filter", c)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (b *base) excluded(reason string, c candidate) {
	b.metrics.Excluded(string(b.profile.platform), reason)
	b.log.DebugWithFields("image excluded", map[string]interface{}{
		"reason":   reason,
		"url":      c.fullSize,
		"strategy": c.strategy,
	})
}

func (b *base) buildRecords(cands []candidate) []models.ImageRecord {
	now := b.now()
	images := make([]models.ImageRecord, 0, len(cands))
	for _, c := range cands {
		meta := map[string]interface{}{
			models.MetaStrategy:        c.strategy,
			models.MetaIsMainPost:      c.mainPost,
			models.MetaContentFiltered: len(b.cfg.ContentFilterPhrases) > 0,
			models.MetaSourceIndex:     c.el.Index(),
		}
		if c.position > 0 {
			meta[models.MetaCarouselPosition] = c.position
		}
		thumb := c.thumbnail
		if thumb == "" {
			thumb = c.fullSize
		}
		images = append(images, models.ImageRecord{
			ID:           urlutil.ImageID(string(b.profile.platform), c.fullSize),
			FullSizeURL:  c.fullSize,
			ThumbnailURL: thumb,
			Alt:          c.alt,
			Width:        c.size.Width,
			Height:       c.size.Height,
			Platform:     b.profile.platform,
			ExtractedAt:  now,
			Metadata:     meta,
		})
		b.metrics.Extracted(string(b.profile.platform), c.strategy)
	}
	return images
}

func pathSegments(u *url.URL) []string {
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
