package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tvpsh2021/social-snap-sub001/pkg/checkpoint"
	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	"github.com/tvpsh2021/social-snap-sub001/pkg/extractor"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/metrics"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// sharedMetrics is registered on the default Prometheus registry, which
// the relay serves on /metrics
var sharedMetrics *metrics.Metrics

func appMetrics() *metrics.Metrics {
	if sharedMetrics == nil {
		sharedMetrics = metrics.NewDefault()
	}
	return sharedMetrics
}

func newRegistry(cfg *config.Config) *extractor.Registry {
	return extractor.NewDefaultRegistry(extractor.Options{
		Config:  cfg.Extraction,
		Logger:  logger.Component("extractor"),
		Metrics: appMetrics(),
	})
}

// openPage returns the page to extract from: a saved capture when
// htmlFile is set, otherwise a live browser tab.
func openPage(ctx context.Context, cfg *config.Config, rawURL, htmlFile string) (dom.Page, func(), error) {
	if _, err := urlutil.ParseHTTPURL(rawURL); err != nil {
		return nil, nil, err
	}
	if htmlFile != "" {
		page, err := dom.LoadStaticPage(rawURL, htmlFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", htmlFile, err)
		}
		return page, func() {}, nil
	}

	page, err := dom.OpenBrowserPage(ctx, rawURL, cfg.Browser, logger.Component("browser"))
	if err != nil {
		return nil, nil, err
	}
	return page, page.Close, nil
}

// extractFrom runs the extractor matching rawURL
func extractFrom(ctx context.Context, cfg *config.Config, rawURL, htmlFile string) (models.Platform, []models.ImageRecord, error) {
	reg := newRegistry(cfg)
	page, release, err := openPage(ctx, cfg, rawURL, htmlFile)
	if err != nil {
		return "", nil, err
	}
	defer release()
	return reg.Extract(ctx, page)
}

// postDirectory is where the images of one post are saved
func postDirectory(base string, platform models.Platform, rawURL string) string {
	return filepath.Join(base, string(platform), checkpoint.Key(rawURL))
}
