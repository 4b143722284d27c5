package extractor

import (
	"fmt"

	"github.com/tvpsh2021/social-snap-sub001/pkg/dom"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// Strategy is one independent way of locating post images. Strategies run
// in order; earlier ones are trusted more.
type Strategy struct {
	Name string
	// MainPost marks results as belonging to the post body rather than a
	// page-wide sweep
	MainPost bool
	Find     func(doc *dom.Document) ([]dom.Element, error)
}

// selectorStrategy finds images with the first selector that matches
// anything.
func selectorStrategy(name string, mainPost bool, selectors ...string) Strategy {
	return Strategy{
		Name:     name,
		MainPost: mainPost,
		Find: func(doc *dom.Document) ([]dom.Element, error) {
			for _, sel := range selectors {
				if found := doc.Find(sel); len(found) > 0 {
					return found, nil
				}
			}
			return nil, nil
		},
	}
}

// candidate is an image seen by a strategy, before it becomes an
// ImageRecord
type candidate struct {
	el        dom.Element
	fullSize  string
	thumbnail string
	alt       string
	size      dom.Size
	strategy  string
	mainPost  bool
	// position is the 1-based carousel slot, 0 outside carousels
	position int
}

// candidateFromImage reads the best available URLs of an <img>. The full
// size URL is the largest srcset entry of the image or its enclosing
// <picture>, falling back to src.
func candidateFromImage(doc *dom.Document, img dom.Element) (candidate, bool) {
	src := img.AttrOr("src", "")
	if src == "" {
		src = img.AttrOr("data-src", "")
	}

	full := ""
	if best, ok := dom.Largest(dom.ParseSrcset(img.AttrOr("srcset", ""))); ok {
		full = best.URL
	} else if picture, ok := img.Closest("picture"); ok {
		var all []dom.SrcsetCandidate
		for _, source := range picture.Find("source[srcset]") {
			all = append(all, dom.ParseSrcset(source.AttrOr("srcset", ""))...)
		}
		if best, ok := dom.Largest(all); ok {
			full = best.URL
		}
	}
	if full == "" {
		full = src
	}
	if full == "" {
		return candidate{}, false
	}

	c := candidate{
		el:        img,
		fullSize:  doc.Resolve(full),
		thumbnail: doc.Resolve(src),
		alt:       img.AttrOr("alt", ""),
		size:      img.Size(),
	}
	return c, c.fullSize != ""
}

// strategyRunner executes strategies and keeps the provenance of every URL
// in a side table. The page itself is never annotated.
type strategyRunner struct {
	b *base
}

func (r strategyRunner) run(doc *dom.Document, strategies []Strategy) []candidate {
	var all []candidate
	for _, s := range strategies {
		found, err := r.safeFind(s, doc)
		if err != nil {
			r.b.metrics.StrategyFailed(string(r.b.profile.platform), s.Name)
			r.b.log.WithError(err).WarnWithFields("extraction strategy failed", map[string]interface{}{
				"strategy": s.Name,
			})
			continue
		}

		count := 0
		for _, el := range found {
			if el.Tag() != "img" {
				continue
			}
			c, ok := candidateFromImage(doc, el)
			if !ok {
				continue
			}
			c.strategy = s.Name
			c.mainPost = s.MainPost
			all = append(all, c)
			count++
		}
		r.b.log.DebugWithFields("strategy finished", map[string]interface{}{
			"strategy": s.Name,
			"images":   count,
		})
	}
	return all
}

// safeFind turns a panicking strategy into an ordinary failure
func (r strategyRunner) safeFind(s Strategy, doc *dom.Document) (found []dom.Element, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			found = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, rec)
		}
	}()
	return s.Find(doc)
}

// dedupe keeps the first candidate for each normalized URL. Applying it
// twice yields the same result as applying it once.
func dedupe(cands []candidate) []candidate {
	provenance := make(map[string]struct{}, len(cands))
	out := make([]candidate, 0, len(cands))
	for _, c := range cands {
		key := urlutil.NormalizeURL(c.fullSize)
		if _, seen := provenance[key]; seen {
			continue
		}
		provenance[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// runStrategies is the multi-strategy pipeline shared by every platform
func (b *base) runStrategies(doc *dom.Document, strategies []Strategy) []candidate {
	cands := strategyRunner{b: b}.run(doc, strategies)
	cands = b.filter(cands)
	cands = dedupe(cands)
	return b.postFilter(doc, cands)
}
