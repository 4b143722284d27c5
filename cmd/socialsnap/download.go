package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tvpsh2021/social-snap-sub001/internal/downloader"
	"github.com/tvpsh2021/social-snap-sub001/pkg/checkpoint"
	"github.com/tvpsh2021/social-snap-sub001/pkg/fetch"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/metadata"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ratelimit"
	"github.com/tvpsh2021/social-snap-sub001/pkg/storage"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ui"
)

var (
	// Download command flags
	outputDir      string
	concurrent     int
	maxRetries     int
	itemDelay      time.Duration
	resumeDownload bool
	forceRestart   bool
	notify         bool
	downloadHTML   string
)

var downloadCmd = &cobra.Command{
	Use:   "download <post-url>",
	Short: "Download the full-size images of a post",
	Long: `Extract the images of a post and download them into
<output>/<platform>/<post-key>/, next to a manifest.json describing each image.

Downloads run one at a time with a short pause between items unless
--concurrent is raised. Transient failures (network errors, timeouts, 429
and 5xx responses) are retried with exponential backoff.`,
	Example: `  # Download a post with default settings
  socialsnap download https://www.instagram.com/p/C1abcDEF/

  # Use a saved page, four parallel downloads and five attempts per image
  socialsnap download https://www.threads.net/@alice/post/C1abc --html post.html --concurrent 4 --max-retries 5

  # Continue an interrupted download
  socialsnap download https://www.instagram.com/p/C1abcDEF/ --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory (default ./downloads)")
	downloadCmd.Flags().IntVar(&concurrent, "concurrent", 1, "number of parallel downloads")
	downloadCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "attempts per image, the first one included")
	downloadCmd.Flags().DurationVar(&itemDelay, "delay", 500*time.Millisecond, "pause between sequential downloads")
	downloadCmd.Flags().BoolVar(&resumeDownload, "resume", false, "skip images recorded in the last checkpoint")
	downloadCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "ignore and replace an existing checkpoint")
	downloadCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when done")
	downloadCmd.Flags().StringVar(&downloadHTML, "html", "", "read the rendered page from a saved HTML file")
}

func runDownload(cmd *cobra.Command, args []string) error {
	postURL := strings.TrimSpace(args[0])
	log := logger.Component("download")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform, images, err := extractFrom(ctx, cfg, postURL, downloadHTML)
	if err != nil {
		log.WithError(err).Error("Extraction failed")
		return userError(err)
	}
	ui.PrintInfo("Platform", string(platform))
	if len(images) == 0 {
		ui.PrintWarning("No images found on this post")
		return nil
	}
	ui.PrintInfo("Images found", fmt.Sprintf("%d", len(images)))

	dir := postDirectory(cfg.Download.BaseDirectory, platform, postURL)
	store, err := storage.NewManager(dir)
	if err != nil {
		return err
	}
	ui.PrintInfo("Output", store.OutputDir())

	cpMgr, cp, skip, err := prepareCheckpoint(postURL, platform, store, len(images))
	if err != nil {
		return err
	}
	if len(skip) > 0 {
		ui.PrintInfo("Resuming", fmt.Sprintf("%d of %d images already downloaded", len(skip), len(images)))
	}

	client := fetch.NewClient(cfg.Download.Timeout, cfg.Browser.UserAgent, logger.Component("fetch"))
	collab := downloader.NewFileCollaborator(client, store, ratelimit.PerMinute(cfg.Download.RequestsPerMinute), logger.Component("download-service"))

	manifest := metadata.New(postURL, platform, images)
	var manifestMu sync.Mutex

	display := ui.NewProgressDisplay(ui.Out, string(platform), len(images),
		!quiet && ui.IsTerminal(os.Stdout), ui.TerminalWidth(os.Stdout, 100))

	manager := downloader.NewManager(collab, downloader.Options{
		Config:  cfg.Download,
		Logger:  log,
		Metrics: appMetrics(),
		OnProgress: func(p models.Progress) {
			display.Update(p)
		},
		OnTaskStart: func(t models.DownloadTask) {
			display.StartDownload(t.Filename)
		},
		OnTaskDone: func(t models.DownloadTask) {
			var size int64
			switch t.State {
			case models.TaskSucceeded:
				if saved, ok := collab.Saved(t.DownloadID); ok {
					t.Filename = saved.Filename
					size = saved.Size
					if err := cpMgr.RecordDownload(cp, t.Image.ID, saved.Filename); err != nil {
						log.WithError(err).Warn("Failed to update checkpoint")
					}
				} else if info, err := os.Stat(store.Path(t.Filename)); err == nil {
					size = info.Size()
				}
				display.CompleteDownload(t.Filename, size)
			case models.TaskFailed:
				display.FailDownload(t.Filename, t.Err)
			}
			manifestMu.Lock()
			manifest.Record(t, size)
			manifestMu.Unlock()
		},
		Skip: func(img models.ImageRecord) (string, bool) {
			name, ok := skip[img.ID]
			return name, ok
		},
	})

	result, batchErr := manager.DownloadBatch(ctx, images)
	display.Complete()

	manifestMu.Lock()
	manifest.DownloadedAt = time.Now()
	if err := manifest.Save(store.OutputDir()); err != nil {
		log.WithError(err).Warn("Failed to write manifest")
	}
	manifestMu.Unlock()

	return finishDownload(cpMgr, platform, result, batchErr, store.OutputDir())
}

// prepareCheckpoint loads or starts the checkpoint of postURL and returns
// the images that can be skipped, keyed by image id
func prepareCheckpoint(postURL string, platform models.Platform, store *storage.Manager, total int) (*checkpoint.Manager, *checkpoint.Checkpoint, map[string]string, error) {
	cpMgr, err := checkpoint.NewManager(postURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}

	skip := make(map[string]string)
	if resumeDownload && !forceRestart {
		cp, err := cpMgr.Load()
		if err != nil {
			return nil, nil, nil, err
		}
		if cp != nil {
			// files removed since the last run are fetched again
			skip = cpMgr.ResumeSet(cp, store.Exists)
			cp.TotalImages = total
			return cpMgr, cp, skip, nil
		}
		ui.PrintWarning("No checkpoint found, starting from scratch")
	}

	if cpMgr.Exists() {
		if err := cpMgr.BackupCheckpoint(); err != nil {
			return nil, nil, nil, err
		}
	}
	cp, err := cpMgr.Create(postURL, platform, store.OutputDir(), total)
	if err != nil {
		return nil, nil, nil, err
	}
	return cpMgr, cp, skip, nil
}

func finishDownload(cpMgr *checkpoint.Manager, platform models.Platform, result *downloader.BatchResult, batchErr error, dir string) error {
	if result == nil {
		return batchErr
	}
	p := result.Progress
	if notify {
		ui.NewNotifier().BatchFinished(platform, p)
	}

	switch {
	case batchErr != nil:
		ui.PrintWarning("Download interrupted", fmt.Sprintf("%d of %d images saved, rerun with --resume to continue", p.Completed, p.Total))
		return userError(batchErr)
	case p.Failed > 0:
		return fmt.Errorf("download failed for %d of %d images, rerun with --resume to retry them", p.Failed, p.Total)
	}

	if err := cpMgr.Delete(); err != nil {
		logger.Component("download").WithError(err).Warn("Failed to remove checkpoint")
	}
	ui.PrintSuccess(fmt.Sprintf("Saved %d images to %s", p.Completed, dir))
	return nil
}
