package downloader

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"

	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/fetch"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ratelimit"
	"github.com/tvpsh2021/social-snap-sub001/pkg/storage"
)

// Request asks the download service to fetch URL into Filename
type Request struct {
	URL      string
	Filename string
	Platform models.Platform
}

// Collaborator is the download service the manager hands work to. Errors
// should be typed so transient failures can be told apart from permanent
// ones.
type Collaborator interface {
	Download(ctx context.Context, req Request) (id string, err error)
}

// SavedFile describes a file written by FileCollaborator
type SavedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// FileCollaborator downloads over HTTP and writes into a storage directory
type FileCollaborator struct {
	client  *fetch.Client
	store   *storage.Manager
	limiter ratelimit.Limiter
	logger  logger.Logger

	mu    sync.Mutex
	saved map[string]SavedFile
}

// NewFileCollaborator creates a file-backed download service
func NewFileCollaborator(client *fetch.Client, store *storage.Manager, limiter ratelimit.Limiter, log logger.Logger) *FileCollaborator {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.Component("download-service")
	}
	return &FileCollaborator{
		client:  client,
		store:   store,
		limiter: limiter,
		logger:  log,
		saved:   make(map[string]SavedFile),
	}
}

func (c *FileCollaborator) Download(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(stopContext(ctx)); err != nil {
		return "", errs.Wrap(errs.ErrorTypeCancelled, err, "waiting for rate limiter")
	}

	var buf bytes.Buffer
	if _, err := c.client.Download(ctx, req.URL, fetch.Referer(req.Platform), &buf); err != nil {
		return "", err
	}

	name := c.store.Reserve(req.Filename)
	path, size, err := c.store.Save(&buf, name)
	if err != nil {
		c.store.Release(name)
		return "", err
	}

	id := uuid.NewString()
	c.mu.Lock()
	c.saved[id] = SavedFile{ID: id, Filename: name, Path: path, Size: size}
	c.mu.Unlock()

	c.logger.DebugWithFields("file saved", map[string]interface{}{
		"download_id": id,
		"filename":    name,
		"size":        size,
	})
	return id, nil
}

// Saved returns the file written for a download id
func (c *FileCollaborator) Saved(id string) (SavedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.saved[id]
	return f, ok
}
