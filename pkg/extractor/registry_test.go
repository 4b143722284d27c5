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

func TestDefaultRegistryCreate(t *testing.T) {
	reg := NewDefaultRegistry(testOptions())

	tests := []struct {
		url      string
		platform models.Platform
	}{
		{"https://www.threads.net/@alice/post/1", models.PlatformThreads},
		{"https://threads.com/@alice/post/1", models.PlatformThreads},
		{"https://www.instagram.com/p/ABC/", models.PlatformInstagram},
		{"https://m.facebook.com/story.php?story_fbid=1", models.PlatformFacebook},
		{"https://fb.com/photo/?fbid=1", models.PlatformFacebook},
	}
	for _, tt := range tests {
		ex, ok := reg.Create(dom.NewStaticPage(tt.url, ""))
		require.True(t, ok, tt.url)
		assert.Equal(t, tt.platform, ex.Platform(), tt.url)
		assert.True(t, ex.IsSupported(tt.url))
	}
}

func TestRegistryNoMatch(t *testing.T) {
	reg := NewDefaultRegistry(testOptions())

	for _, raw := range []string{
		"https://example.com/p/ABC/",
		"https://notinstagram.com/p/ABC/",
		"https://instagram.com.evil.io/p/ABC/",
		"not a url",
	} {
		ex, ok := reg.Create(dom.NewStaticPage(raw, ""))
		assert.False(t, ok, raw)
		assert.Nil(t, ex)
	}
}

func TestRegistryRegister(t *testing.T) {
	reg := NewDefaultRegistry(testOptions())

	err := reg.Register(models.PlatformThreads, NewThreads, PlatformInfo{Hosts: []string{"threads.net"}}, Capabilities{})
	assert.Error(t, err, "duplicate id")
	assert.Error(t, reg.Register("", NewThreads, PlatformInfo{Hosts: []string{"x.com"}}, Capabilities{}))
	assert.Error(t, reg.Register("x", nil, PlatformInfo{Hosts: []string{"x.com"}}, Capabilities{}))
	assert.Error(t, reg.Register("x", NewThreads, PlatformInfo{}, Capabilities{}))

	called := false
	ctor := func(page dom.Page, opts Options) Extractor {
		called = true
		return NewThreads(page, opts)
	}
	require.NoError(t, reg.Register("mirror", ctor, PlatformInfo{Name: "Mirror", Hosts: []string{"mirror.example"}}, Capabilities{}))

	_, ok := reg.Create(dom.NewStaticPage("https://cdn.mirror.example/@a/post/1", ""))
	assert.True(t, ok)
	assert.True(t, called)

	platforms := reg.Platforms()
	require.Len(t, platforms, 4)
	assert.Equal(t, models.PlatformThreads, platforms[0].ID)
	assert.Equal(t, models.Platform("mirror"), platforms[3].ID)
	assert.True(t, platforms[1].Capabilities.Carousel)
}

func TestRegistryExtractorsShareOptions(t *testing.T) {
	opts := testOptions()
	reg := NewDefaultRegistry(opts)

	ex, ok := reg.Create(dom.NewStaticPage(threadsPostURL, threadsFixture))
	require.True(t, ok)
	images, err := ex.ExtractImages(context.Background())
	require.NoError(t, err)
	assert.Len(t, images, 2)
}

func TestRegistryExtractUnsupported(t *testing.T) {
	reg := NewDefaultRegistry(testOptions())

	platform, images, err := reg.Extract(context.Background(), dom.NewStaticPage("https://example.com/post/1", "<html></html>"))
	assert.Empty(t, platform)
	assert.Nil(t, images)
	assert.True(t, errs.Is(err, errs.ErrorTypePlatformNotSupported))
}

func TestRegistryExtractFeedPage(t *testing.T) {
	reg := NewDefaultRegistry(testOptions())

	platform, _, err := reg.Extract(context.Background(), dom.NewStaticPage("https://www.instagram.com/", "<html></html>"))
	assert.Equal(t, models.PlatformInstagram, platform)
	assert.True(t, errs.Is(err, errs.ErrorTypeFeedPage))
}
