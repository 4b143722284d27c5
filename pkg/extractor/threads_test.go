package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

const threadsPostURL = "https://www.threads.net/@alice/post/C1abc"

var threadsFixture = `<html><body><div role="main">
<div data-pressable-container="true">
  <a href="/@alice"><img src="https://scontent.cdninstagram.com/v/t51/alice_avatar.jpg" width="36" height="36" alt="alice's profile picture"></a>
  <span>Weekend in the mountains</span>
  <picture><img src="https://scontent.cdninstagram.com/v/t51/111_n.jpg?stp=s320"
    srcset="https://scontent.cdninstagram.com/v/t51/111_n.jpg?stp=s320 320w, https://scontent.cdninstagram.com/v/t51/111_n.jpg?stp=s1080 1080w"
    alt="Photo by Alice on June 1" width="1080" height="1350"></picture>
  <picture><img src="https://scontent.cdninstagram.com/v/t51/222_n.jpg" alt="" width="1080" height="1080"></picture>
  <img src="https://static.cdninstagram.com/rsrc/share_thumb.jpg" alt="May be a news article thumbnail" width="600" height="315">
  <div class="caption">` + filler(60) + `</div>
  <svg aria-label="Like"></svg>
</div>
<div data-pressable-container="true">
  <a href="/@bob">bob</a>
  <picture><img src="https://scontent.cdninstagram.com/v/t51/333_n.jpg" width="1080" height="1080" alt=""></picture>
  <svg aria-label="Like"></svg>
</div>
<img src="https://example.com/tracker.gif" width="1" height="1">
</div></body></html>`

func TestThreadsExtractImages(t *testing.T) {
	opts := testOptions()
	ex := NewThreads(dom.NewStaticPage(threadsPostURL, threadsFixture), opts)

	images, err := ex.ExtractImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 2)

	first := images[0]
	assert.Equal(t, "https://scontent.cdninstagram.com/v/t51/111_n.jpg?stp=s1080", first.FullSizeURL)
	assert.Equal(t, "https://scontent.cdninstagram.com/v/t51/111_n.jpg?stp=s320", first.ThumbnailURL)
	assert.Equal(t, models.PlatformThreads, first.Platform)
	assert.Equal(t, "main-post-container", first.Metadata[models.MetaStrategy])
	assert.Equal(t, true, first.Metadata[models.MetaIsMainPost])
	assert.NotContains(t, first.Metadata, models.MetaCarouselPosition)
	assert.Equal(t, 1080, first.Width)

	assert.Equal(t, "https://scontent.cdninstagram.com/v/t51/222_n.jpg", images[1].FullSizeURL)
	assert.NotEqual(t, images[0].ID, images[1].ID)

	m := opts.Metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesExcluded.WithLabelValues("threads", "content-filter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesExcluded.WithLabelValues("threads", ReasonForeignAuthor)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImagesExtracted.WithLabelValues("threads", "main-post-container")))
}

func TestThreadsStrategyFailureIsNotFatal(t *testing.T) {
	opts := testOptions()
	ex := NewThreads(dom.NewStaticPage(threadsPostURL, threadsFixture), opts).(*Threads)
	ex.strategies = append([]Strategy{
		{Name: "exploding", MainPost: true, Find: func(*dom.Document) ([]dom.Element, error) {
			panic("selector engine blew up")
		}},
		{Name: "broken", MainPost: true, Find: func(*dom.Document) ([]dom.Element, error) {
			return nil, errors.New("markup changed")
		}},
	}, ex.strategies...)

	images, err := ex.ExtractImages(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.StrategyFailures.WithLabelValues("threads", "exploding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.StrategyFailures.WithLabelValues("threads", "broken")))
}

func TestThreadsWithoutImagesIsEmptySuccess(t *testing.T) {
	markup := `<html><body><div data-pressable-container="true"><span>text only</span></div></body></html>`
	ex := NewThreads(dom.NewStaticPage(threadsPostURL, markup), testOptions())

	images, err := ex.ExtractImages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestThreadsUnsupportedURL(t *testing.T) {
	ex := NewThreads(dom.NewStaticPage("https://www.facebook.com/photo/?fbid=1", threadsFixture), testOptions())

	assert.False(t, ex.IsSupported("https://www.facebook.com/"))
	assert.True(t, ex.IsSupported("https://www.threads.com/@a/post/b"))

	_, err := ex.ExtractImages(context.Background())
	assert.True(t, errs.Is(err, errs.ErrorTypePlatformNotSupported))
}

func TestIsThreadsPost(t *testing.T) {
	tests := map[string]bool{
		"https://www.threads.net/":                true,
		"https://www.threads.net/for_you":         true,
		"https://www.threads.net/@alice":          true,
		"https://www.threads.net/@alice/post/C1":  false,
		"https://www.threads.net/t/C1":            false,
		"https://www.threads.com/@a.b/post/x?s=1": false,
	}
	for raw, feed := range tests {
		ex := NewThreads(dom.NewStaticPage(raw, ""), testOptions()).(*Threads)
		err := ex.checkURL()
		assert.Equal(t, feed, errs.Is(err, errs.ErrorTypeFeedPage), raw)
	}
}

func TestDedupeIsIdempotent(t *testing.T) {
	cands := []candidate{
		{fullSize: "https://scontent.cdninstagram.com/a.jpg?sig=1", strategy: "first"},
		{fullSize: "https://scontent.cdninstagram.com/b.jpg", strategy: "first"},
		{fullSize: "https://SCONTENT.cdninstagram.com/a.jpg?sig=2", strategy: "second"},
		{fullSize: "https://scontent.cdninstagram.com/c.jpg", strategy: "second"},
		{fullSize: "https://scontent.cdninstagram.com/b.jpg#x", strategy: "third"},
	}

	once := dedupe(cands)
	twice := dedupe(once)

	require.Len(t, once, 3)
	assert.Equal(t, once, twice)
	assert.Equal(t, "first", once[0].strategy, "earlier strategy keeps provenance")
	assert.Equal(t, "https://scontent.cdninstagram.com/c.jpg", once[2].fullSize)
}
