package downloader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/metrics"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/retry"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// ErrBatchInProgress is returned when a batch is started while another one
// is still running
var ErrBatchInProgress = errors.New("a download batch is already in progress")

// Options configures a Manager
type Options struct {
	Config  config.DownloadConfig
	Logger  logger.Logger
	Metrics *metrics.Metrics
	// Now is the clock used for filename timestamps
	Now func() time.Time
	// OnProgress is called after every task state change
	OnProgress func(models.Progress)
	// OnTaskStart and OnTaskDone observe individual tasks
	OnTaskStart func(models.DownloadTask)
	OnTaskDone  func(models.DownloadTask)
	// Skip reports images that are already on disk, with their filename.
	// Skipped tasks succeed without contacting the collaborator.
	Skip func(models.ImageRecord) (filename string, ok bool)
}

// Result is the outcome of one download
type Result struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename"`
	DownloadID string `json:"downloadId,omitempty"`
	Attempts   int    `json:"attempts"`
	Err        error  `json:"-"`
}

// BatchResult is the final state of a batch
type BatchResult struct {
	Tasks    []models.DownloadTask `json:"tasks"`
	Progress models.Progress       `json:"progress"`
}

// Manager turns image records into rate-limited, retried downloads and
// tracks their progress. One batch runs at a time.
type Manager struct {
	collab Collaborator
	opts   Options
	log    logger.Logger

	mu        sync.Mutex
	tasks     []*models.DownloadTask
	running   bool
	cancelled bool
	cancel    context.CancelFunc
}

// NewManager creates a download manager using collab as download service
func NewManager(collab Collaborator, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logger.Component("downloader")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Config.MaxAttempts <= 0 {
		opts.Config.MaxAttempts = 1
	}
	if opts.Config.Concurrency <= 0 {
		opts.Config.Concurrency = 1
	}
	return &Manager{collab: collab, opts: opts, log: opts.Logger}
}

// Filename returns the deterministic name for image at index
func (m *Manager) Filename(image models.ImageRecord, index int, at time.Time) string {
	return urlutil.BuildFilename(string(image.Platform), image.FullSizeURL, index, at)
}

// DownloadSingle downloads one image outside of any batch
func (m *Manager) DownloadSingle(ctx context.Context, image models.ImageRecord, index int) Result {
	filename := m.Filename(image, index, m.opts.Now())
	id, attempts, err := m.fetch(ctx, image, filename)
	logger.LogDownload(m.log, filename, attempts, err)

	res := Result{Filename: filename, DownloadID: id, Attempts: attempts, Err: err, Success: err == nil}
	m.opts.Metrics.Downloaded(string(image.Platform), outcomeOf(err))
	return res
}

// fetch asks the collaborator for one file, retrying transient failures
func (m *Manager) fetch(ctx context.Context, image models.ImageRecord, filename string) (string, int, error) {
	req := Request{URL: image.FullSizeURL, Filename: filename, Platform: image.Platform}
	attempts := 0

	id, err := retry.DoWithResult(func() (string, error) {
		attempts++
		return m.collab.Download(inFlight(ctx), req)
	}, &retry.Config{
		MaxAttempts: m.opts.Config.MaxAttempts,
		Backoff:     retry.FromConfig(m.opts.Config.Backoff),
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      m.log,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			m.opts.Metrics.Retried()
			m.log.WarnWithFields("retrying download", map[string]interface{}{
				"filename": filename,
				"attempt":  attempt,
				"delay":    delay.String(),
				"error":    err.Error(),
			})
		},
	})
	if err != nil && ctx.Err() != nil && !errs.Is(err, errs.ErrorTypeCancelled) {
		err = errs.Wrap(errs.ErrorTypeCancelled, err, "download cancelled")
	}
	return id, attempts, err
}

type stopKey struct{}

// inFlight detaches ctx from cancellation for one collaborator call, so a
// started transfer runs to completion. The cancellable ctx stays reachable
// through stopContext for waits that happen before the transfer begins.
func inFlight(ctx context.Context) context.Context {
	return context.WithValue(context.WithoutCancel(ctx), stopKey{}, ctx)
}

// stopContext returns the cancellable context behind an inFlight context
func stopContext(ctx context.Context) context.Context {
	if stop, ok := ctx.Value(stopKey{}).(context.Context); ok {
		return stop
	}
	return ctx
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSucceeded
	case errs.Is(err, errs.ErrorTypeCancelled):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeFailed
	}
}

// DownloadBatch downloads images and returns once every task is terminal.
// Tasks run sequentially with InterItemDelay between them unless
// Concurrency is above one.
func (m *Manager) DownloadBatch(ctx context.Context, images []models.ImageRecord) (*BatchResult, error) {
	b, err := m.reserve(ctx, images)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, b)
}

// StartBatch reserves the manager for images and runs the batch in the
// background, calling done with its outcome. It fails with
// ErrBatchInProgress, without starting anything, while another batch runs.
func (m *Manager) StartBatch(ctx context.Context, images []models.ImageRecord, done func(*BatchResult, error)) error {
	b, err := m.reserve(ctx, images)
	if err != nil {
		return err
	}
	go func() {
		result, err := m.run(ctx, b)
		if done != nil {
			done(result, err)
		}
	}()
	return nil
}

// batch is a reserved run of the manager
type batch struct {
	ctx    context.Context
	cancel context.CancelFunc
	tasks  []*models.DownloadTask
}

func (m *Manager) reserve(ctx context.Context, images []models.ImageRecord) (*batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil, ErrBatchInProgress
	}
	batchCtx, cancel := context.WithCancel(ctx)
	at := m.opts.Now()
	m.tasks = make([]*models.DownloadTask, len(images))
	for i, img := range images {
		m.tasks[i] = &models.DownloadTask{
			Image:    img.Clone(),
			Index:    i + 1,
			State:    models.TaskPending,
			Filename: m.Filename(img, i+1, at),
		}
	}
	m.running = true
	m.cancelled = false
	m.cancel = cancel
	return &batch{ctx: batchCtx, cancel: cancel, tasks: m.tasks}, nil
}

func (m *Manager) run(ctx context.Context, b *batch) (*BatchResult, error) {
	tasks := b.tasks
	defer func() {
		b.cancel()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
	}()

	m.log.InfoWithFields("Starting download batch", map[string]interface{}{
		"total":       len(tasks),
		"concurrency": m.opts.Config.Concurrency,
	})
	m.notifyProgress()

	if m.opts.Config.Concurrency > 1 {
		m.runPool(b.ctx, tasks)
	} else {
		m.runSequential(b.ctx, tasks)
	}

	// anything left behind by cancellation ends as cancelled
	m.mu.Lock()
	for _, t := range tasks {
		if !t.State.Terminal() {
			t.State = models.TaskCancelled
		}
	}
	result := m.snapshotLocked()
	wasCancelled := m.cancelled
	m.mu.Unlock()
	m.notifyProgress()

	m.log.InfoWithFields("Download batch finished", map[string]interface{}{
		"completed": result.Progress.Completed,
		"failed":    result.Progress.Failed,
		"cancelled": result.Progress.Cancelled,
	})

	if wasCancelled || ctx.Err() != nil {
		return result, errs.New(errs.ErrorTypeCancelled, "download batch cancelled")
	}
	return result, nil
}

func (m *Manager) runSequential(ctx context.Context, tasks []*models.DownloadTask) {
	for i, t := range tasks {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && m.opts.Config.InterItemDelay > 0 {
			if err := retry.Wait(ctx, m.opts.Config.InterItemDelay); err != nil {
				return
			}
		}
		m.runTask(ctx, t)
	}
}

// runTask drives one task to a terminal state
func (m *Manager) runTask(ctx context.Context, t *models.DownloadTask) {
	m.mu.Lock()
	if t.State.Terminal() {
		m.mu.Unlock()
		return
	}
	if m.opts.Skip != nil {
		if name, ok := m.opts.Skip(t.Image); ok {
			t.State = models.TaskSucceeded
			t.Filename = name
			done := *t
			m.mu.Unlock()
			m.log.DebugWithFields("skipping downloaded image", map[string]interface{}{"filename": name})
			m.taskDone(done)
			return
		}
	}
	t.State = models.TaskInProgress
	started := *t
	m.mu.Unlock()

	if m.opts.OnTaskStart != nil {
		m.opts.OnTaskStart(started)
	}
	m.notifyProgress()

	id, attempts, err := m.fetch(ctx, started.Image, started.Filename)

	m.mu.Lock()
	t.Attempts = attempts
	if t.State.Terminal() {
		// cancelled while in flight, the collaborator result is discarded
		m.mu.Unlock()
		return
	}
	switch {
	case err == nil:
		t.State = models.TaskSucceeded
		t.DownloadID = id
	case errs.Is(err, errs.ErrorTypeCancelled):
		t.State = models.TaskCancelled
		t.Err = err
	default:
		t.State = models.TaskFailed
		t.Err = err
	}
	done := *t
	m.mu.Unlock()

	logger.LogDownload(m.log, done.Filename, attempts, err)
	m.opts.Metrics.Downloaded(string(done.Image.Platform), outcomeOf(err))
	m.taskDone(done)
}

func (m *Manager) taskDone(t models.DownloadTask) {
	if m.opts.OnTaskDone != nil {
		m.opts.OnTaskDone(t)
	}
	m.notifyProgress()
}

func (m *Manager) notifyProgress() {
	if m.opts.OnProgress != nil {
		m.opts.OnProgress(m.GetDownloadProgress())
	}
}

// GetDownloadProgress returns the progress of the current or last batch
func (m *Manager) GetDownloadProgress() models.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressLocked()
}

func (m *Manager) progressLocked() models.Progress {
	var completed, failed, inProgress, cancelled int
	for _, t := range m.tasks {
		switch t.State {
		case models.TaskSucceeded:
			completed++
		case models.TaskFailed:
			failed++
		case models.TaskInProgress:
			inProgress++
		case models.TaskCancelled:
			cancelled++
		}
	}
	return models.NewProgress(len(m.tasks), completed, failed, inProgress, cancelled)
}

func (m *Manager) snapshotLocked() *BatchResult {
	out := &BatchResult{Tasks: make([]models.DownloadTask, len(m.tasks))}
	for i, t := range m.tasks {
		out.Tasks[i] = *t
		out.Tasks[i].Image = t.Image.Clone()
	}
	out.Progress = m.progressLocked()
	return out
}

// Tasks returns a copy of the current batch's tasks
func (m *Manager) Tasks() []models.DownloadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked().Tasks
}

// Running reports whether a batch is in flight
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// CancelAllDownloads marks every pending or in-flight task cancelled and
// stops the batch before its next item. Collaborator calls already in
// flight finish and their results are discarded.
func (m *Manager) CancelAllDownloads() {
	m.mu.Lock()
	n := 0
	for _, t := range m.tasks {
		if !t.State.Terminal() {
			t.State = models.TaskCancelled
			n++
		}
	}
	if m.running {
		m.cancelled = true
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if n > 0 {
		m.log.InfoWithFields("Downloads cancelled", map[string]interface{}{"tasks": n})
		m.notifyProgress()
	}
}
