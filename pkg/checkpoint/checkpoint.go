package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// Checkpoint is the resumable download state of one post
type Checkpoint struct {
	PostURL          string            `json:"post_url"`
	Platform         models.Platform   `json:"platform"`
	OutputDir        string            `json:"output_dir"`
	DownloadedImages map[string]string `json:"downloaded_images"` // image id -> filename
	TotalImages      int               `json:"total_images"`
	TotalDownloaded  int               `json:"total_downloaded"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Version          int               `json:"version"`
}

const formatVersion = 1

// Manager reads and writes the checkpoint file of a single post. All
// mutation of a Checkpoint it created or loaded goes through it.
type Manager struct {
	mu     sync.Mutex
	path   string
	logger logger.Logger
}

// NewManager stores the checkpoint of postURL under the user data directory
func NewManager(postURL string) (*Manager, error) {
	base, err := dataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerIn(filepath.Join(base, "checkpoints"), postURL)
}

// NewManagerIn stores the checkpoint of postURL under dir
func NewManagerIn(dir, postURL string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &Manager{
		path:   filepath.Join(dir, Key(postURL)+".checkpoint.json"),
		logger: logger.Component("checkpoint"),
	}, nil
}

// Key derives a stable file-safe key from a post URL. Query strings and
// fragments do not change the key.
func Key(postURL string) string {
	sum := sha256.Sum256([]byte(urlutil.NormalizeURL(postURL)))
	return hex.EncodeToString(sum[:8])
}

func (m *Manager) Path() string {
	return m.path
}

// Create writes a fresh checkpoint, replacing any existing one
func (m *Manager) Create(postURL string, platform models.Platform, outputDir string, totalImages int) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		PostURL:          postURL,
		Platform:         platform,
		OutputDir:        outputDir,
		DownloadedImages: map[string]string{},
		TotalImages:      totalImages,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          formatVersion,
	}
	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"post_url": postURL,
		"path":     m.path,
	})
	return cp, nil
}

// Load returns the stored checkpoint, or nil when there is none
func (m *Manager) Load() (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.DownloadedImages == nil {
		cp.DownloadedImages = map[string]string{}
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"post_url":         cp.PostURL,
		"total_downloaded": cp.TotalDownloaded,
		"updated_at":       cp.UpdatedAt,
	})
	return &cp, nil
}

func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(cp)
}

// write replaces the checkpoint file through a temporary sibling so a
// crash never leaves a truncated file behind
func (m *Manager) write(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"post_url":         cp.PostURL,
		"total_downloaded": cp.TotalDownloaded,
	})
	return nil
}

func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// RecordDownload marks imageID as saved under filename and persists the
// checkpoint. Safe for concurrent download workers.
func (m *Manager) RecordDownload(cp *Checkpoint, imageID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := cp.DownloadedImages[imageID]; !seen {
		cp.TotalDownloaded++
	}
	cp.DownloadedImages[imageID] = filename
	return m.write(cp)
}

// ResumeSet returns the recorded downloads whose file still passes
// present, keyed by image id. The result is a copy that workers may read
// while RecordDownload keeps updating cp.
func (m *Manager) ResumeSet(cp *Checkpoint, present func(filename string) bool) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(cp.DownloadedImages))
	for id, name := range cp.DownloadedImages {
		if present == nil || present(name) {
			out[id] = name
		}
	}
	return out
}

// IsDownloaded reports whether imageID was recorded. Not safe while
// RecordDownload runs; use ResumeSet then.
func (cp *Checkpoint) IsDownloaded(imageID string) bool {
	_, ok := cp.DownloadedImages[imageID]
	return ok
}

// Complete reports whether every image of the post has been downloaded
func (cp *Checkpoint) Complete() bool {
	return cp.TotalImages > 0 && cp.TotalDownloaded >= cp.TotalImages
}

// BackupCheckpoint copies the checkpoint file to Path()+".backup"
func (m *Manager) BackupCheckpoint() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read checkpoint for backup: %w", err)
	}
	if err := os.WriteFile(m.path+".backup", data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint backup: %w", err)
	}
	m.logger.Debug("Checkpoint backed up")
	return nil
}

// dataDirectory is $XDG_DATA_HOME/socialsnap when set, otherwise the
// socialsnap folder of the user configuration directory
func dataDirectory() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		base = dir
	}

	dir := filepath.Join(base, "socialsnap")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}
