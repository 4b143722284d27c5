package downloader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

// runPool feeds tasks to a fixed number of workers. Rate limiting is left
// to the collaborator, so no inter-item delay is applied here.
func (m *Manager) runPool(ctx context.Context, tasks []*models.DownloadTask) {
	numWorkers := m.opts.Config.Concurrency
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	m.log.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": numWorkers,
	})

	jobQueue := make(chan *models.DownloadTask, numWorkers*2)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobQueue)
		for _, t := range tasks {
			select {
			case jobQueue <- t:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < numWorkers; i++ {
		id := i
		g.Go(func() error {
			m.worker(gctx, id, jobQueue)
			return nil
		})
	}

	_ = g.Wait()
	m.log.Info("Worker pool stopped")
}

// worker is the main worker routine
func (m *Manager) worker(ctx context.Context, id int, jobs <-chan *models.DownloadTask) {
	m.log.DebugWithFields("Worker started", map[string]interface{}{
		"worker_id": id,
	})

	for t := range jobs {
		if ctx.Err() != nil {
			m.log.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
		m.runTask(ctx, t)
	}

	m.log.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}
