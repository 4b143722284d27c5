package extractor

import (
	"context"
	"fmt"
	"sync"

	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/models"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// Constructor builds an extractor bound to a page
type Constructor func(page dom.Page, opts Options) Extractor

// PlatformInfo describes a registered platform
type PlatformInfo struct {
	Name        string   `json:"name"`
	Hosts       []string `json:"hosts"`
	Description string   `json:"description"`
}

// Capabilities lists optional behaviour of a platform's extractor
type Capabilities struct {
	Carousel         bool `json:"carousel"`
	CommentFiltering bool `json:"commentFiltering"`
	PhotoViewer      bool `json:"photoViewer"`
}

// Registration is one row of the registry table
type Registration struct {
	ID           models.Platform `json:"id"`
	Info         PlatformInfo    `json:"info"`
	Capabilities Capabilities    `json:"capabilities"`
	ctor         Constructor
}

// Registry maps page hosts to extractor constructors. Matching is first
// registration wins, so adding a platform only takes a Register call.
type Registry struct {
	mu      sync.RWMutex
	entries []Registration
	opts    Options
}

// NewRegistry creates an empty registry whose extractors share opts
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts.withDefaults()}
}

// NewDefaultRegistry registers Threads, Instagram and Facebook
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry(opts)
	// registration of built-in platforms cannot collide
	_ = r.Register(models.PlatformThreads, NewThreads, PlatformInfo{
		Name:        "Threads",
		Hosts:       threadsHosts,
		Description: "Single Threads posts (/@user/post/<id>)",
	}, Capabilities{CommentFiltering: true})
	_ = r.Register(models.PlatformInstagram, NewInstagram, PlatformInfo{
		Name:        "Instagram",
		Hosts:       instagramHosts,
		Description: "Instagram posts and reels, including multi-image carousels",
	}, Capabilities{Carousel: true, CommentFiltering: true})
	_ = r.Register(models.PlatformFacebook, NewFacebook, PlatformInfo{
		Name:        "Facebook",
		Hosts:       facebookHosts,
		Description: "Facebook posts and the photo viewer",
	}, Capabilities{CommentFiltering: true, PhotoViewer: true})
	return r
}

// Register appends a platform to the table
func (r *Registry) Register(id models.Platform, ctor Constructor, info PlatformInfo, caps Capabilities) error {
	if id == "" {
		return fmt.Errorf("platform id is required")
	}
	if ctor == nil {
		return fmt.Errorf("platform %s: constructor is required", id)
	}
	if len(info.Hosts) == 0 {
		return fmt.Errorf("platform %s: at least one host pattern is required", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return fmt.Errorf("platform %s is already registered", id)
		}
	}
	r.entries = append(r.entries, Registration{ID: id, Info: info, Capabilities: caps, ctor: ctor})
	return nil
}

func (r *Registry) lookup(rawURL string) (Registration, bool) {
	host := urlutil.Hostname(rawURL)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if matchesHosts(host, e.Info.Hosts) {
			return e, true
		}
	}
	return Registration{}, false
}

// Create returns an extractor for page, or false when no platform
// matches its host.
func (r *Registry) Create(page dom.Page) (Extractor, bool) {
	e, ok := r.lookup(page.URL())
	if !ok {
		return nil, false
	}
	return e.ctor(page, r.opts), true
}

// Lookup returns the registration matching rawURL
func (r *Registry) Lookup(rawURL string) (Registration, bool) {
	return r.lookup(rawURL)
}

// Platforms lists registrations in match order
func (r *Registry) Platforms() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, len(r.entries))
	copy(out, r.entries)
	return out
}

// Extract picks the extractor for page and runs it. Pages no platform
// claims fail with platform_not_supported.
func (r *Registry) Extract(ctx context.Context, page dom.Page) (models.Platform, []models.ImageRecord, error) {
	ext, ok := r.Create(page)
	if !ok {
		return "", nil, errs.New(errs.ErrorTypePlatformNotSupported, "no extractor for %q", page.URL())
	}
	images, err := ext.ExtractImages(ctx)
	return ext.Platform(), images, err
}
