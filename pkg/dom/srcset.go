package dom

import (
	"strconv"
	"strings"
)

// SrcsetCandidate is one entry of a srcset attribute
type SrcsetCandidate struct {
	URL string
	// Width is the w descriptor, 0 if the entry used a density
	Width int
	// Density is the x descriptor, 1 when neither descriptor is present
	Density float64
}

// ParseSrcset splits a srcset attribute into its candidates. Entries that
// cannot be parsed are skipped.
func ParseSrcset(srcset string) []SrcsetCandidate {
	var out []SrcsetCandidate
	for _, part := range splitSrcset(srcset) {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		c := SrcsetCandidate{URL: fields[0], Density: 1}
		if len(fields) > 1 {
			desc := strings.ToLower(fields[1])
			switch {
			case strings.HasSuffix(desc, "w"):
				w, err := strconv.Atoi(strings.TrimSuffix(desc, "w"))
				if err != nil {
					continue
				}
				c.Width = w
			case strings.HasSuffix(desc, "x"):
				x, err := strconv.ParseFloat(strings.TrimSuffix(desc, "x"), 64)
				if err != nil {
					continue
				}
				c.Density = x
			}
		}
		out = append(out, c)
	}
	return out
}

// splitSrcset splits on commas that separate candidates. CDN URLs may
// contain commas themselves, so a comma only ends a candidate once a
// descriptor has started or when it is followed by whitespace.
func splitSrcset(srcset string) []string {
	var parts []string
	start := 0
	afterURL := false
	for i := 0; i < len(srcset); i++ {
		switch c := srcset[i]; {
		case isSpace(c):
			if strings.TrimSpace(srcset[start:i]) != "" {
				afterURL = true
			}
		case c == ',':
			if afterURL || i+1 == len(srcset) || isSpace(srcset[i+1]) {
				parts = append(parts, srcset[start:i])
				start = i + 1
				afterURL = false
			}
		}
	}
	if strings.TrimSpace(srcset[start:]) != "" {
		parts = append(parts, srcset[start:])
	}
	return parts
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// Largest returns the highest-resolution candidate
func Largest(candidates []SrcsetCandidate) (SrcsetCandidate, bool) {
	if len(candidates) == 0 {
		return SrcsetCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Width > best.Width || (c.Width == best.Width && c.Density > best.Density) {
			best = c
		}
	}
	return best, true
}
