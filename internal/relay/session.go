package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
)

// Session is the result of the latest extraction
type Session struct {
	ID          string               `json:"id"`
	PageURL     string               `json:"pageUrl"`
	Platform    models.Platform      `json:"platform"`
	Images      []models.ImageRecord `json:"images"`
	ExtractedAt time.Time            `json:"extractedAt"`
}

// SessionStore holds the current session. A new extraction replaces it as
// a whole and readers only ever get copies.
type SessionStore struct {
	mu      sync.RWMutex
	current *Session
	now     func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{now: time.Now}
}

// Replace starts a new session holding images
func (s *SessionStore) Replace(pageURL string, platform models.Platform, images []models.ImageRecord) Session {
	next := &Session{
		ID:          uuid.NewString(),
		PageURL:     pageURL,
		Platform:    platform,
		Images:      models.CloneImages(images),
		ExtractedAt: s.now(),
	}
	if next.Images == nil {
		next.Images = []models.ImageRecord{}
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next.copy()
}

// Current returns a copy of the session, or false before the first
// extraction
func (s *SessionStore) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return s.current.copy(), true
}

// Images returns a copy of the current session's images
func (s *SessionStore) Images() []models.ImageRecord {
	sess, ok := s.Current()
	if !ok {
		return []models.ImageRecord{}
	}
	return sess.Images
}

func (s *Session) copy() Session {
	out := *s
	out.Images = models.CloneImages(s.Images)
	return out
}
