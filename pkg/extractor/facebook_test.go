package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

func TestFacebookPhotoViewer(t *testing.T) {
	markup := `<html><body><div role="dialog">
<img data-visualcompletion="media-vc-image" src="https://scontent-lax3-1.xx.fbcdn.net/v/t39.30808-6/photo_n.jpg?_nc_cat=1" width="2048" height="1365" alt="May be an image of a lake">
<div role="article" aria-label="Comment by Bob Smith">
  <img src="https://scontent-lax3-1.xx.fbcdn.net/v/t39.30808-6/comment_n.jpg" width="400" height="400" alt="">
</div>
<img src="https://static.xx.fbcdn.net/rsrc.php/emoji/heart.png" width="16" height="16">
</div></body></html>`
	page := dom.NewStaticPage("https://www.facebook.com/photo/?fbid=1234567890", markup)
	ex := NewFacebook(page, testOptions())

	images, err := ex.ExtractImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "https://scontent-lax3-1.xx.fbcdn.net/v/t39.30808-6/photo_n.jpg?_nc_cat=1", images[0].FullSizeURL)
	assert.Equal(t, "photo-viewer", images[0].Metadata[models.MetaStrategy])
	assert.Equal(t, models.PlatformFacebook, images[0].Platform)
}

func TestFacebookCommentsExcludedWhenPolicyEnabled(t *testing.T) {
	markup := `<html><body><div role="main">
<div role="article" aria-label="Comment by Bob Smith">
  <img src="https://scontent.xx.fbcdn.net/v/comment_n.jpg" width="400" height="400">
</div>
</div></body></html>`
	url := "https://www.facebook.com/alice/posts/pfbid0abc"

	ex := NewFacebook(dom.NewStaticPage(url, markup), testOptions())
	images, err := ex.ExtractImages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)

	opts := testOptions()
	opts.Config.Comments.Enabled = false
	ex = NewFacebook(dom.NewStaticPage(url, markup), opts)
	images, err = ex.ExtractImages(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestFacebookAuthorResolvedInsidePost(t *testing.T) {
	markup := `<html><body>
<div role="banner"><a role="link" href="https://www.facebook.com/watch/">Watch</a></div>` + filler(60) + `
<div role="main"><div role="article">
  <a role="link" href="https://www.facebook.com/alice">Alice</a>
  <img src="https://scontent.xx.fbcdn.net/v/t39.30808-6/post_n.jpg" width="1200" height="900">
</div></div></body></html>`

	ex := NewFacebook(dom.NewStaticPage("https://www.facebook.com/alice/posts/pfbid0abc", markup), testOptions())
	images, err := ex.ExtractImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "https://scontent.xx.fbcdn.net/v/t39.30808-6/post_n.jpg", images[0].FullSizeURL)
}

func TestIsFacebookPost(t *testing.T) {
	tests := map[string]bool{
		"https://www.facebook.com/":                          false,
		"https://www.facebook.com/home.php":                  false,
		"https://www.facebook.com/watch/":                    false,
		"https://www.facebook.com/marketplace/":              false,
		"https://www.facebook.com/watch/?v=123":              true,
		"https://www.facebook.com/photo/?fbid=1":             true,
		"https://m.facebook.com/story.php?story_fbid=1&id=2": true,
		"https://www.facebook.com/alice/posts/pfbid0abc":     true,
	}
	for raw, post := range tests {
		err := NewFacebook(dom.NewStaticPage(raw, ""), testOptions()).(*Facebook).checkURL()
		if post {
			assert.NoError(t, err, raw)
		} else {
			assert.True(t, errs.Is(err, errs.ErrorTypeFeedPage), raw)
		}
	}
}
