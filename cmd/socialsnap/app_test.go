package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

const savedThreadsPage = `<html><body><div role="main">
<div data-pressable-container="true">
  <a href="/@alice">alice</a>
  <picture><img src="https://scontent.cdninstagram.com/v/t51/111_n.jpg" alt="" width="1080" height="1080"></picture>
  <svg aria-label="Like"></svg>
</div>
</div></body></html>`

func TestPostDirectory(t *testing.T) {
	dir := postDirectory("downloads", models.PlatformInstagram, "https://www.instagram.com/p/ABC/")
	parts := strings.Split(filepath.ToSlash(dir), "/")
	require.Len(t, parts, 3)
	assert.Equal(t, "downloads", parts[0])
	assert.Equal(t, "instagram", parts[1])
	assert.Len(t, parts[2], 16)

	again := postDirectory("downloads", models.PlatformInstagram, "https://www.instagram.com/p/ABC/")
	assert.Equal(t, dir, again)
}

func TestCollectFlagsOnlyTakesChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().String("output", "", "")
	cmd.Flags().Int("concurrent", 1, "")
	cmd.Flags().Int("max-retries", 3, "")
	cmd.Flags().Duration("delay", time.Second, "")
	require.NoError(t, cmd.ParseFlags([]string{"--output", "/tmp/out", "--concurrent", "4"}))

	flags := map[string]interface{}{}
	collectFlags(cmd, flags)

	assert.Equal(t, "/tmp/out", flags["output"])
	assert.Equal(t, 4, flags["concurrent"])
	assert.NotContains(t, flags, "max-retries")
	assert.NotContains(t, flags, "delay")

	c := config.DefaultConfig()
	c.MergeCommandLineFlags(flags)
	assert.Equal(t, "/tmp/out", c.Download.BaseDirectory)
	assert.Equal(t, 4, c.Download.Concurrency)
	assert.Equal(t, 3, c.Download.MaxAttempts)
}

func TestUserError(t *testing.T) {
	plain := assert.AnError
	assert.Equal(t, plain, userError(plain))

	typed := errs.New(errs.ErrorTypeFeedPage, "feed")
	assert.Equal(t, errs.UserMessage(typed), userError(typed).Error())
}

func TestExtractFromSavedPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post.html")
	require.NoError(t, os.WriteFile(path, []byte(savedThreadsPage), 0644))

	c := config.DefaultConfig()
	platform, images, err := extractFrom(context.Background(), c, "https://www.threads.net/@alice/post/C1abc", path)
	require.NoError(t, err)
	assert.Equal(t, models.PlatformThreads, platform)
	require.Len(t, images, 1)
	assert.Equal(t, "https://scontent.cdninstagram.com/v/t51/111_n.jpg", images[0].FullSizeURL)
}

func TestExtractFromRejectsBadInput(t *testing.T) {
	c := config.DefaultConfig()

	_, _, err := extractFrom(context.Background(), c, "not a url", "unused.html")
	assert.Error(t, err)

	_, _, err = extractFrom(context.Background(), c, "https://www.threads.net/@alice/post/1", filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "post.html")
	require.NoError(t, os.WriteFile(path, []byte(savedThreadsPage), 0644))
	_, _, err = extractFrom(context.Background(), c, "https://example.com/post/1", path)
	assert.True(t, errs.Is(err, errs.ErrorTypePlatformNotSupported))
}
