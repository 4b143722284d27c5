package urlutil

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilename(t *testing.T) {
	at, err := time.Parse(TimestampLayout, "20250816120000")
	require.NoError(t, err)

	got := BuildFilename("instagram", "https://cdn.example.com/img/532037768_n.jpg?stp=dst-jpg", 3, at)
	assert.Equal(t, "instagram_image_20250816120000_3.jpg", got)
}

func TestInferExtension(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"path extension", "https://cdn.example.com/a/b.png?x=1", "png"},
		{"jpeg normalized", "https://cdn.example.com/a/b.JPEG", "jpg"},
		{"format param", "https://cdn.example.com/media?format=webp", "webp"},
		{"token substring", "https://cdn.example.com/v/t51/abc?stp=dst-webp_s1080", "webp"},
		{"unknown path extension falls through", "https://cdn.example.com/a/b.php?format=png", "png"},
		{"default", "https://cdn.example.com/media/12345", "jpg"},
		{"garbage", "::not a url::", "jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferExtension(tt.url))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d.jpg", SanitizeFilename("a<b>c:d.jpg"))
	assert.Equal(t, "x_y", SanitizeFilename("x/y"))
	assert.Equal(t, "_CON", SanitizeFilename("CON"))
	assert.Equal(t, "_lpt1.txt", SanitizeFilename("lpt1.txt"))
	assert.Equal(t, "name", SanitizeFilename("name. "))
	assert.Equal(t, "_", SanitizeFilename(""))
	assert.Equal(t, "tab_here", SanitizeFilename("tab\there"))

	long := SanitizeFilename(strings.Repeat("a", 300) + ".jpg")
	assert.Len(t, long, maxFilenameLength)
	assert.True(t, strings.HasSuffix(long, ".jpg"))
}

func TestNormalizeURL(t *testing.T) {
	a := NormalizeURL("https://Scontent.cdninstagram.com/v/t51/123_n.jpg?stp=dst-jpg&_nc_ht=a")
	b := NormalizeURL("https://scontent.cdninstagram.com/v/t51/123_n.jpg?_nc_ht=b#frag")
	assert.Equal(t, a, b)
	assert.Equal(t, "https://scontent.cdninstagram.com/v/t51/123_n.jpg", a)

	assert.NotEqual(t, NormalizeURL("https://x.com/1.jpg"), NormalizeURL("https://x.com/2.jpg"))
}

func TestNormalizeURLKeepsIdentityParams(t *testing.T) {
	a := NormalizeURL("https://external.xx.fbcdn.net/safe_image.php?d=AQ1&url=https%3A%2F%2Fnews.example%2Fa.jpg&_nc_hash=1")
	b := NormalizeURL("https://external.xx.fbcdn.net/safe_image.php?d=AQ2&url=https%3A%2F%2Fnews.example%2Fb.jpg")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "https://external.xx.fbcdn.net/safe_image.php?url=https%3A%2F%2Fnews.example%2Fa.jpg", a)

	assert.NotEqual(t,
		NormalizeURL("https://www.facebook.com/watch/?v=123"),
		NormalizeURL("https://www.facebook.com/watch/?v=456"))
	assert.Equal(t,
		NormalizeURL("https://m.facebook.com/story.php?story_fbid=1&id=2&ref=share"),
		NormalizeURL("https://m.facebook.com/story.php?id=2&story_fbid=1"))
}

func TestImageIDIsStable(t *testing.T) {
	id1 := ImageID("threads", "https://cdn.example.com/1.jpg?sig=a")
	id2 := ImageID("threads", "https://cdn.example.com/1.jpg?sig=b")
	assert.Equal(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1, "threads-"))
	assert.Len(t, id1, len("threads-")+12)
}

func TestParseHTTPURL(t *testing.T) {
	_, err := ParseHTTPURL("https://www.threads.net/@user/post/abc")
	assert.NoError(t, err)

	for _, raw := range []string{"data:image/png;base64,xx", "ftp://host/file", "/relative/path", "blob:https://x"} {
		_, err := ParseHTTPURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestHostMatches(t *testing.T) {
	assert.True(t, HostMatches("www.instagram.com", "instagram.com"))
	assert.True(t, HostMatches("instagram.com", "instagram.com"))
	assert.False(t, HostMatches("notinstagram.com", "instagram.com"))
	assert.False(t, HostMatches("instagram.com.evil.io", "instagram.com"))
}

func TestResolve(t *testing.T) {
	base, _ := url.Parse("https://www.facebook.com/photo/?fbid=1")
	assert.Equal(t, "https://scontent.fbcdn.net/a.jpg", Resolve(base, "//scontent.fbcdn.net/a.jpg"))
	assert.Equal(t, "https://www.facebook.com/images/x.png", Resolve(base, "/images/x.png"))
	assert.Equal(t, "", Resolve(base, "  "))
}
