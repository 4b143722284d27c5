package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/fetch"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ratelimit"
	"github.com/tvpsh2021/social-snap-sub001/pkg/storage"
)

func newFileCollaborator(t *testing.T) (*FileCollaborator, *storage.Manager) {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	client := fetch.NewClient(5*time.Second, "", logger.NewNopLogger())
	return NewFileCollaborator(client, store, nil, logger.NewNopLogger()), store
}

func TestFileCollaboratorSavesFile(t *testing.T) {
	var referer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("Referer")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	collab, store := newFileCollaborator(t)
	id, err := collab.Download(context.Background(), Request{
		URL:      srv.URL + "/img.jpg",
		Filename: "threads_image_20250816120000_1.jpg",
		Platform: models.PlatformThreads,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, fetch.Referer(models.PlatformThreads), referer)

	saved, ok := collab.Saved(id)
	require.True(t, ok)
	assert.Equal(t, "threads_image_20250816120000_1.jpg", saved.Filename)
	assert.Equal(t, int64(10), saved.Size)

	data, err := os.ReadFile(filepath.Join(store.OutputDir(), saved.Filename))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestFileCollaboratorAvoidsNameCollisions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	collab, _ := newFileCollaborator(t)
	req := Request{URL: srv.URL, Filename: "facebook_image_1.jpg", Platform: models.PlatformFacebook}

	first, err := collab.Download(context.Background(), req)
	require.NoError(t, err)
	second, err := collab.Download(context.Background(), req)
	require.NoError(t, err)

	a, _ := collab.Saved(first)
	b, _ := collab.Saved(second)
	assert.Equal(t, "facebook_image_1.jpg", a.Filename)
	assert.Equal(t, "facebook_image_1_1.jpg", b.Filename)
}

func TestFileCollaboratorHTTPErrorLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	collab, store := newFileCollaborator(t)
	_, err := collab.Download(context.Background(), Request{URL: srv.URL, Filename: "a.jpg"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeNotFound))
	assert.False(t, errs.IsTransient(err))
	assert.Equal(t, 0, store.Count())
}

func TestManagerWithFileCollaborator(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	collab, store := newFileCollaborator(t)
	m := NewManager(collab, testOptions())

	img := models.ImageRecord{FullSizeURL: srv.URL + "/photo.png", Platform: models.PlatformInstagram}
	res := m.DownloadSingle(context.Background(), img, 1)

	require.True(t, res.Success, "%v", res.Err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "instagram_image_20250816120000_1.png", res.Filename)
	assert.True(t, store.Exists(res.Filename))
}

func TestFileCollaboratorRateLimitWaitStopsOnCancel(t *testing.T) {
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	limiter := ratelimit.NewTokenBucket(1, time.Hour)
	require.True(t, limiter.Allow())
	collab := NewFileCollaborator(fetch.NewClient(time.Second, "", logger.NewNopLogger()), store, limiter, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err = collab.Download(inFlight(ctx), Request{URL: "https://scontent.cdninstagram.com/a.jpg", Filename: "a.jpg"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrorTypeCancelled))
	assert.Less(t, time.Since(start), time.Second)
}
