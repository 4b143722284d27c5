package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/tvpsh2021/social-snap-sub001/internal/downloader"
	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/extractor"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// PageOpener loads the rendered page at rawURL. The returned func releases
// it.
type PageOpener func(ctx context.Context, rawURL string) (dom.Page, func(), error)

// Dispatcher routes relay messages to the extraction engine and the
// download manager
type Dispatcher struct {
	registry  *extractor.Registry
	open      PageOpener
	downloads *downloader.Manager
	sessions  *SessionStore
	log       logger.Logger

	// OnImagesExtracted is told about every new session
	OnImagesExtracted func(Session)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher wires a dispatcher. Batches started through it live until
// Close.
func NewDispatcher(registry *extractor.Registry, open PageOpener, downloads *downloader.Manager, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Component("relay")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		registry:  registry,
		open:      open,
		downloads: downloads,
		sessions:  NewSessionStore(),
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Sessions exposes the session store
func (d *Dispatcher) Sessions() *SessionStore {
	return d.sessions
}

// Handle answers one message
func (d *Dispatcher) Handle(ctx context.Context, msg Message) Response {
	d.log.DebugWithFields("relay message", map[string]interface{}{"action": msg.Action})

	switch msg.Action {
	case ActionExtractImages:
		return d.extractImages(ctx, msg.URL)
	case ActionImagesExtracted:
		return d.imagesExtracted(msg)
	case ActionDownloadImages:
		return d.downloadImages(msg.Images)
	case ActionDownloadSingleImage:
		return d.downloadSingle(ctx, msg)
	case ActionGetCurrentImages:
		sess, _ := d.sessions.Current()
		images := d.sessions.Images()
		return imagesResponse(images, sess.ID)
	case ActionGetDownloadProgress:
		p := d.downloads.GetDownloadProgress()
		return Response{Success: true, Progress: &p}
	case ActionCancelDownloads:
		d.downloads.CancelAllDownloads()
		return Response{Success: true}
	default:
		return failure(ErrorTypeUnknownAction, "unknown action: "+msg.Action)
	}
}

func errorResponse(err error) Response {
	return failure(string(errs.TypeOf(err)), errs.UserMessage(err))
}

func (d *Dispatcher) extractImages(ctx context.Context, rawURL string) Response {
	if rawURL == "" {
		sess, ok := d.sessions.Current()
		if !ok {
			return failure(string(errs.ErrorTypeInvalidURL), "no page url given and no page extracted yet")
		}
		rawURL = sess.PageURL
	}
	if _, err := urlutil.ParseHTTPURL(rawURL); err != nil {
		return failure(string(errs.ErrorTypeInvalidURL), err.Error())
	}
	if _, ok := d.registry.Lookup(rawURL); !ok {
		return errorResponse(errs.New(errs.ErrorTypePlatformNotSupported, "no extractor for %q", rawURL))
	}

	page, release, err := d.open(ctx, rawURL)
	if err != nil {
		d.log.WithError(err).Error("failed to open page")
		return errorResponse(errs.Wrap(errs.ErrorTypePageNotReady, err, "open page"))
	}
	if release != nil {
		defer release()
	}

	platform, images, err := d.registry.Extract(ctx, page)
	if err != nil {
		return errorResponse(err)
	}

	sess := d.sessions.Replace(page.URL(), platform, images)
	d.notify(sess)
	return imagesResponse(sess.Images, sess.ID)
}

// imagesExtracted accepts images found by an extractor running elsewhere,
// such as inside the browser
func (d *Dispatcher) imagesExtracted(msg Message) Response {
	var platform models.Platform
	if len(msg.Images) > 0 {
		platform = msg.Images[0].Platform
	}
	sess := d.sessions.Replace(msg.URL, platform, msg.Images)
	d.notify(sess)

	n := len(sess.Images)
	return Response{Success: true, Count: &n, SessionID: sess.ID}
}

func (d *Dispatcher) notify(sess Session) {
	d.log.InfoWithFields("images extracted", map[string]interface{}{
		"session":  sess.ID,
		"platform": sess.Platform,
		"count":    len(sess.Images),
	})
	if d.OnImagesExtracted != nil {
		d.OnImagesExtracted(sess)
	}
}

// downloadImages starts a batch in the background and answers right away
func (d *Dispatcher) downloadImages(images []models.ImageRecord) Response {
	if len(images) == 0 {
		images = d.sessions.Images()
	}
	if len(images) == 0 {
		return failure(ErrorTypeNoImages, "there are no images to download")
	}
	images = models.CloneImages(images)
	d.wg.Add(1)
	err := d.downloads.StartBatch(d.ctx, images, func(result *downloader.BatchResult, err error) {
		defer d.wg.Done()
		if err != nil {
			d.log.WithError(err).Warn("download batch ended early")
			return
		}
		d.log.InfoWithFields("download batch complete", map[string]interface{}{
			"completed": result.Progress.Completed,
			"failed":    result.Progress.Failed,
		})
	})
	if err != nil {
		d.wg.Done()
		if errors.Is(err, downloader.ErrBatchInProgress) {
			return failure(ErrorTypeDownloadInProgress, err.Error())
		}
		return errorResponse(err)
	}

	n := len(images)
	return Response{Success: true, Count: &n}
}

func (d *Dispatcher) downloadSingle(ctx context.Context, msg Message) Response {
	if msg.Image == nil {
		return failure(ErrorTypeInvalidMessage, "image is required")
	}
	index := msg.Index
	if index <= 0 {
		index = 1
	}
	res := d.downloads.DownloadSingle(ctx, msg.Image.Clone(), index)
	if !res.Success {
		resp := errorResponse(res.Err)
		resp.Filename = res.Filename
		return resp
	}
	return Response{Success: true, Filename: res.Filename}
}

// Wait blocks until background batches have finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels running batches and waits for them
func (d *Dispatcher) Close() {
	d.downloads.CancelAllDownloads()
	d.cancel()
	d.wg.Wait()
}
