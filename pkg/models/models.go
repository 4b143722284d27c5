package models

import (
	"time"
)

// Platform identifies a supported social network
type Platform string

const (
	PlatformThreads   Platform = "threads"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
)

// Metadata keys recorded on every ImageRecord
const (
	MetaStrategy         = "strategy"
	MetaIsMainPost       = "is_main_post"
	MetaContentFiltered  = "content_filtered"
	MetaCarouselPosition = "carousel_position"
	MetaSourceIndex      = "source_index"
)

// ImageRecord is one image discovered on a post page. Records are never
// modified after an extractor returns them.
type ImageRecord struct {
	ID           string                 `json:"id"`
	FullSizeURL  string                 `json:"fullSizeUrl"`
	ThumbnailURL string                 `json:"thumbnailUrl"`
	Alt          string                 `json:"alt"`
	Width        int                    `json:"width,omitempty"`
	Height       int                    `json:"height,omitempty"`
	Platform     Platform               `json:"platform"`
	ExtractedAt  time.Time              `json:"extractedAt"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Clone returns a copy that shares no maps with r
func (r ImageRecord) Clone() ImageRecord {
	if r.Metadata != nil {
		meta := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		r.Metadata = meta
	}
	return r
}

// CloneImages deep-copies a slice of records
func CloneImages(images []ImageRecord) []ImageRecord {
	if images == nil {
		return nil
	}
	out := make([]ImageRecord, len(images))
	for i, img := range images {
		out[i] = img.Clone()
	}
	return out
}

// TaskState is the lifecycle state of a DownloadTask
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskInProgress TaskState = "in_progress"
	TaskSucceeded  TaskState = "succeeded"
	TaskFailed     TaskState = "failed"
	TaskCancelled  TaskState = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed || s == TaskCancelled
}

// DownloadTask tracks one image through a batch
type DownloadTask struct {
	Image      ImageRecord `json:"image"`
	Index      int         `json:"index"`
	State      TaskState   `json:"state"`
	Attempts   int         `json:"attempts"`
	Filename   string      `json:"filename"`
	DownloadID string      `json:"downloadId,omitempty"`
	Err        error       `json:"-"`
}

// Progress is a point-in-time view of the current batch
type Progress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	InProgress int     `json:"inProgress"`
	Cancelled  int     `json:"cancelled"`
	Percentage float64 `json:"percentage"`
}

// NewProgress derives a Progress from task counts
func NewProgress(total, completed, failed, inProgress, cancelled int) Progress {
	p := Progress{
		Total:      total,
		Completed:  completed,
		Failed:     failed,
		InProgress: inProgress,
		Cancelled:  cancelled,
	}
	if total > 0 {
		p.Percentage = float64(completed+failed) * 100 / float64(total)
	}
	return p
}
