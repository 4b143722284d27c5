package relay

import (
	"encoding/json"

	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

// Actions understood by the dispatcher
const (
	ActionExtractImages       = "extractImages"
	ActionImagesExtracted     = "imagesExtracted"
	ActionDownloadImages      = "downloadImages"
	ActionDownloadSingleImage = "downloadSingleImage"
	ActionGetCurrentImages    = "getCurrentImages"
	ActionGetDownloadProgress = "getDownloadProgress"
	ActionCancelDownloads     = "cancelDownloads"
)

// Error types the relay reports on top of the shared error taxonomy
const (
	ErrorTypeUnknownAction      = "unknown_action"
	ErrorTypeInvalidMessage     = "invalid_message"
	ErrorTypeNoImages           = "no_images"
	ErrorTypeDownloadInProgress = "download_in_progress"
)

// Message is a request sent to the relay
type Message struct {
	Action string               `json:"action"`
	URL    string               `json:"url,omitempty"`
	Images []models.ImageRecord `json:"images,omitempty"`
	Count  int                  `json:"count,omitempty"`
	Image  *models.ImageRecord  `json:"image,omitempty"`
	Index  int                  `json:"index,omitempty"`
}

// Response is the relay's answer to a Message. Only the fields relevant
// to the action are set. Answers that carry images always encode the
// images key, as [] when nothing was found.
type Response struct {
	Success   bool                 `json:"success"`
	Images    []models.ImageRecord `json:"images,omitempty"`
	Count     *int                 `json:"count,omitempty"`
	Filename  string               `json:"filename,omitempty"`
	Progress  *models.Progress     `json:"progress,omitempty"`
	SessionID string               `json:"sessionId,omitempty"`
	Error     string               `json:"error,omitempty"`
	ErrorType string               `json:"errorType,omitempty"`

	hasImages bool
}

func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	if !r.hasImages {
		return json.Marshal(plain(r))
	}
	images := r.Images
	if images == nil {
		images = []models.ImageRecord{}
	}
	return json.Marshal(struct {
		plain
		Images []models.ImageRecord `json:"images"`
	}{plain(r), images})
}

func imagesResponse(images []models.ImageRecord, sessionID string) Response {
	n := len(images)
	return Response{Success: true, Images: images, Count: &n, SessionID: sessionID, hasImages: true}
}

func failure(errorType, message string) Response {
	return Response{Success: false, Error: message, ErrorType: errorType}
}
