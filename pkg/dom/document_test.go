package dom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
<div role="main">
  <a href="/author" id="author">author</a>
  <div class="post">
    <img id="one" src="https://cdn.example.com/1.jpg" width="640" height="480" alt="first">
    <img id="two" src="/rel/2.jpg">
  </div>
  <div class="comment-list"><span><img id="three" src="https://cdn.example.com/3.jpg"></span></div>
</div>
</body></html>`

func mustDoc(t *testing.T) *Document {
	t.Helper()
	doc, err := NewDocumentFromHTML("https://www.example.com/p/1/", fixture)
	require.NoError(t, err)
	return doc
}

func TestDocumentOrderAndQueries(t *testing.T) {
	doc := mustDoc(t)

	imgs := doc.Find("img")
	require.Len(t, imgs, 3)
	assert.Less(t, imgs[0].Index(), imgs[1].Index())
	assert.Less(t, imgs[1].Index(), imgs[2].Index())

	author := doc.Find("#author")[0]
	assert.Less(t, author.Index(), imgs[0].Index())

	assert.True(t, doc.Exists(`[role="main"]`))
	assert.False(t, doc.Exists("article"))
	assert.Equal(t, "img", imgs[0].Tag())
}

func TestElementAncestry(t *testing.T) {
	doc := mustDoc(t)
	three := doc.Find("#three")[0]

	c, ok := three.Closest(".comment-list")
	require.True(t, ok)
	assert.Equal(t, "div", c.Tag())

	_, ok = doc.Find("#one")[0].Closest(".comment-list")
	assert.False(t, ok)

	ancestors := three.Ancestors()
	require.NotEmpty(t, ancestors)
	assert.Equal(t, "span", ancestors[0].Tag(), "nearest ancestor first")
}

func TestElementSize(t *testing.T) {
	doc := mustDoc(t)
	doc.SetRenderedSizes(map[string]Size{
		"https://www.example.com/rel/2.jpg": {Width: 1080, Height: 1350},
	})

	assert.Equal(t, Size{Width: 640, Height: 480}, doc.Find("#one")[0].Size())
	assert.Equal(t, Size{Width: 1080, Height: 1350}, doc.Find("#two")[0].Size())
	assert.Equal(t, Size{}, doc.Find("#three")[0].Size())
}

func TestResolve(t *testing.T) {
	doc := mustDoc(t)
	assert.Equal(t, "https://www.example.com/rel/2.jpg", doc.Resolve("/rel/2.jpg"))
}

func TestParseSrcset(t *testing.T) {
	got := ParseSrcset("https://cdn.example.com/a.jpg?x=1,2 320w, https://cdn.example.com/b.jpg 1080w,https://cdn.example.com/c.jpg 640w")
	require.Len(t, got, 3)
	assert.Equal(t, "https://cdn.example.com/a.jpg?x=1,2", got[0].URL)
	assert.Equal(t, 320, got[0].Width)

	best, ok := Largest(got)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/b.jpg", best.URL)

	density := ParseSrcset("a.jpg, b.jpg 2x")
	require.Len(t, density, 2)
	best, _ = Largest(density)
	assert.Equal(t, "b.jpg", best.URL)

	_, ok = Largest(nil)
	assert.False(t, ok)
}

func TestStaticPage(t *testing.T) {
	page := NewStaticPage("https://www.example.com/p/1/", fixture)
	doc, err := page.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Find("img"), 3)

	assert.ErrorIs(t, page.Click(context.Background(), "button"), ErrReadOnly)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = page.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
