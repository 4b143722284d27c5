package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tvpsh2021/social-snap-sub001/internal/downloader"
	"github.com/tvpsh2021/social-snap-sub001/internal/relay"
	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	"github.com/tvpsh2021/social-snap-sub001/pkg/fetch"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ratelimit"
	"github.com/tvpsh2021/social-snap-sub001/pkg/storage"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ui"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the message relay over HTTP",
	Long: `Start an HTTP relay that browser integrations talk to.

POST /api/messages accepts {"action": ...} messages: extractImages,
imagesExtracted, downloadImages, downloadSingleImage, getCurrentImages,
getDownloadProgress and cancelDownloads. Pages are opened in a headless
browser and files are saved under the configured output directory.
Prometheus metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default 127.0.0.1:8787)")
	serveCmd.Flags().StringVarP(&outputDir, "output", "o", "", "base output directory (default ./downloads)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Component("serve")

	store, err := storage.NewManager(cfg.Download.BaseDirectory)
	if err != nil {
		return err
	}
	client := fetch.NewClient(cfg.Download.Timeout, cfg.Browser.UserAgent, logger.Component("fetch"))
	collab := downloader.NewFileCollaborator(client, store, ratelimit.PerMinute(cfg.Download.RequestsPerMinute), logger.Component("download-service"))

	m := appMetrics()
	manager := downloader.NewManager(collab, downloader.Options{
		Config:  cfg.Download,
		Logger:  logger.Component("downloader"),
		Metrics: m,
	})

	reg := newRegistry(cfg)
	open := func(ctx context.Context, rawURL string) (dom.Page, func(), error) {
		return openPage(ctx, cfg, rawURL, "")
	}
	dispatcher := relay.NewDispatcher(reg, open, manager, logger.Component("relay"))
	defer dispatcher.Close()

	server := relay.NewServer(cfg.Server, dispatcher, reg, m, logger.Component("relay-http"))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	ui.PrintInfo("Relay listening", "http://"+cfg.Server.Addr)
	ui.PrintInfo("Saving to", store.OutputDir())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
