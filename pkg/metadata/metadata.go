package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

// ManifestFile is the name of the manifest written next to the images
const ManifestFile = "manifest.json"

// Manifest describes one extraction and what became of each image
type Manifest struct {
	PostURL      string          `json:"post_url"`
	Platform     models.Platform `json:"platform"`
	ExtractedAt  time.Time       `json:"extracted_at"`
	DownloadedAt time.Time       `json:"downloaded_at,omitempty"`
	Entries      []Entry         `json:"entries"`
}

// Entry is one image of the manifest
type Entry struct {
	Image    models.ImageRecord `json:"image"`
	Index    int                `json:"index"`
	Filename string             `json:"filename,omitempty"`
	State    models.TaskState   `json:"state"`
	Attempts int                `json:"attempts,omitempty"`
	FileSize int64              `json:"file_size,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// New creates a manifest listing images as pending
func New(postURL string, platform models.Platform, images []models.ImageRecord) *Manifest {
	m := &Manifest{
		PostURL:     postURL,
		Platform:    platform,
		ExtractedAt: time.Now(),
		Entries:     make([]Entry, len(images)),
	}
	for i, img := range images {
		m.Entries[i] = Entry{Image: img.Clone(), Index: i + 1, State: models.TaskPending}
		if !img.ExtractedAt.IsZero() && img.ExtractedAt.Before(m.ExtractedAt) {
			m.ExtractedAt = img.ExtractedAt
		}
	}
	return m
}

// Record copies the outcome of a download task into its entry
func (m *Manifest) Record(task models.DownloadTask, fileSize int64) {
	for i := range m.Entries {
		if m.Entries[i].Index != task.Index {
			continue
		}
		e := &m.Entries[i]
		e.Filename = task.Filename
		e.State = task.State
		e.Attempts = task.Attempts
		e.FileSize = fileSize
		e.Error = ""
		if task.Err != nil {
			e.Error = task.Err.Error()
		}
		return
	}
}

// Summary counts entries per state
func (m *Manifest) Summary() map[models.TaskState]int {
	out := make(map[models.TaskState]int)
	for _, e := range m.Entries {
		out[e.State]++
	}
	return out
}

// Save writes the manifest to dir/manifest.json
func (m *Manifest) Save(dir string) error {
	sort.SliceStable(m.Entries, func(a, b int) bool { return m.Entries[a].Index < m.Entries[b].Index })

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}
	return nil
}

// Load reads dir/manifest.json
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

// AspectRatio returns the aspect ratio of an image as a string
func AspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "unknown"
	}

	ratio := float64(width) / float64(height)

	switch {
	case ratio > 1.7 && ratio < 1.8:
		return "16:9"
	case ratio > 1.3 && ratio < 1.4:
		return "4:3"
	case ratio > 0.9 && ratio < 1.1:
		return "1:1"
	case ratio > 0.79 && ratio < 0.81:
		return "4:5"
	case ratio > 0.55 && ratio < 0.57:
		return "9:16"
	case ratio > 0.74 && ratio < 0.76:
		return "3:4"
	default:
		return fmt.Sprintf("%.2f:1", ratio)
	}
}
