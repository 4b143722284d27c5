package extractor

import (
	"net/url"
	"strings"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
)

// ExclusionPolicy decides whether an image belongs to a comment or reply
// rather than to the post itself.
type ExclusionPolicy interface {
	Exclude(doc *dom.Document, img dom.Element) (reason string, excluded bool)
}

// HeuristicPolicy checks, in decreasing order of reliability, explicit
// comment markers, comment-like class names, the author of the nearest
// profile link and the distance from the post's Like control.
type HeuristicPolicy struct {
	// CommentSelectors match comment or reply containers
	CommentSelectors []string
	// ClassTokens are substrings of class names that denote comments
	ClassTokens []string
	// ProfileLinkSelector matches links to user profiles
	ProfileLinkSelector string
	// LikeSelector matches the post's Like control; the first match wins
	LikeSelector string
	// PostContainerSelectors match the post body, tried in order. The
	// post author is the first profile link inside the first container
	// that is not a comment; without one the first link on the page is used.
	PostContainerSelectors []string

	AuthorLinkDistance  int
	InteractionDistance int
}

// Exclusion reasons
const (
	ReasonCommentMarker = "comment-marker"
	ReasonCommentClass  = "comment-class"
	ReasonForeignAuthor = "foreign-author"
	ReasonBelowActions  = "below-interactions"
)

func newHeuristicPolicy(cfg config.CommentConfig, commentSelectors []string, profileLinks, like string) *HeuristicPolicy {
	return &HeuristicPolicy{
		CommentSelectors:    commentSelectors,
		ClassTokens:         []string{"comment", "reply"},
		ProfileLinkSelector: profileLinks,
		LikeSelector:        like,
		AuthorLinkDistance:  cfg.AuthorLinkDistance,
		InteractionDistance: cfg.InteractionDistance,
	}
}

func (p *HeuristicPolicy) Exclude(doc *dom.Document, img dom.Element) (string, bool) {
	if p.isComment(img) {
		return ReasonCommentMarker, true
	}

	if len(p.ClassTokens) > 0 {
		for _, anc := range img.Ancestors() {
			class := strings.ToLower(anc.AttrOr("class", ""))
			for _, token := range p.ClassTokens {
				if strings.Contains(class, token) {
					return ReasonCommentClass, true
				}
			}
		}
	}

	idx := img.Index()

	if p.ProfileLinkSelector != "" {
		links := doc.Find(p.ProfileLinkSelector)
		if len(links) > 0 {
			author := p.postAuthor(doc, links[0])
			var nearest dom.Element
			for _, l := range links {
				if l.Index() < idx {
					nearest = l
				}
			}
			if nearest.Valid() &&
				profileKey(nearest.AttrOr("href", "")) != profileKey(author.AttrOr("href", "")) &&
				nearest.Index()-author.Index() > p.AuthorLinkDistance {
				return ReasonForeignAuthor, true
			}
		}
	}

	if p.LikeSelector != "" {
		if likes := doc.Find(p.LikeSelector); len(likes) > 0 {
			if idx-likes[0].Index() > p.InteractionDistance {
				return ReasonBelowActions, true
			}
		}
	}

	return "", false
}

// postAuthor finds the profile link of the post's author, skipping
// navigation links that precede the post body.
func (p *HeuristicPolicy) postAuthor(doc *dom.Document, fallback dom.Element) dom.Element {
	for _, sel := range p.PostContainerSelectors {
		for _, c := range doc.Find(sel) {
			if p.isComment(c) {
				continue
			}
			if in := c.Find(p.ProfileLinkSelector); len(in) > 0 {
				return in[0]
			}
			break
		}
	}
	return fallback
}

func (p *HeuristicPolicy) isComment(e dom.Element) bool {
	for _, sel := range p.CommentSelectors {
		if _, ok := e.Closest(sel); ok {
			return true
		}
	}
	return false
}

// profileKey reduces a profile href to the account it points at
func profileKey(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	segs := pathSegments(u)
	if len(segs) == 0 || segs[0] == "profile.php" {
		return strings.ToLower(u.Query().Get("id"))
	}
	return strings.ToLower(segs[0])
}
