package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 500*time.Millisecond, cfg.Download.InterItemDelay)
	assert.Equal(t, 1, cfg.Download.Concurrency)
	assert.Equal(t, 3, cfg.Download.MaxAttempts)
	assert.Equal(t, 1, cfg.Extraction.Carousel.StagnantAdvances)
	assert.Contains(t, cfg.Extraction.ExclusionWords, "avatar")
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SOCIALSNAP_OUTPUT_DIR", "/tmp/socialsnap-test")
	t.Setenv("SOCIALSNAP_CONCURRENCY", "2")
	t.Setenv("SOCIALSNAP_MAX_ATTEMPTS", "5")
	t.Setenv("SOCIALSNAP_INTER_ITEM_DELAY", "250ms")
	t.Setenv("SOCIALSNAP_HEADLESS", "false")
	t.Setenv("SOCIALSNAP_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/socialsnap-test", cfg.Download.BaseDirectory)
	assert.Equal(t, 2, cfg.Download.Concurrency)
	assert.Equal(t, 5, cfg.Download.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Download.InterItemDelay)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("SOCIALSNAP_CONCURRENCY", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOCIALSNAP_CONCURRENCY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero attempts", func(c *Config) { c.Download.MaxAttempts = 0 }, "max attempts"},
		{"too concurrent", func(c *Config) { c.Download.Concurrency = 11 }, "concurrency should not exceed"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"no carousel cap", func(c *Config) { c.Extraction.Carousel.MaxImages = 0 }, "carousel max images"},
		{"negative distance", func(c *Config) { c.Extraction.Comments.AuthorLinkDistance = -1 }, "comment distances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFileAndSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
download:
  inter_item_delay: 1s
  concurrency: 2
extraction:
  carousel:
    settle_delay: 750ms
    max_images: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, time.Second, cfg.Download.InterItemDelay)
	assert.Equal(t, 2, cfg.Download.Concurrency)
	assert.Equal(t, 750*time.Millisecond, cfg.Extraction.Carousel.SettleDelay)
	assert.Equal(t, 12, cfg.Extraction.Carousel.MaxImages)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Download.MaxAttempts)

	out := filepath.Join(dir, "nested", "saved.yaml")
	require.NoError(t, cfg.Save(out))

	reloaded := DefaultConfig()
	require.NoError(t, reloaded.LoadFromFile(out))
	assert.Equal(t, cfg.Extraction.Carousel, reloaded.Extraction.Carousel)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  concurrency: 2\n  max_attempts: 4\n"), 0600))

	t.Setenv("SOCIALSNAP_CONCURRENCY", "3")

	cfg, err := Load(path, map[string]interface{}{"max-retries": 6})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Download.Concurrency, "env overrides file")
	assert.Equal(t, 6, cfg.Download.MaxAttempts, "flags override file")
}
