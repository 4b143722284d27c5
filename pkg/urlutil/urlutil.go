// Package urlutil holds the pure URL and filename helpers shared by the
// extractors and the download manager.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the YYYYMMDDHHMMSS layout used in filenames
const TimestampLayout = "20060102150405"

const maxFilenameLength = 200

var knownExtensions = map[string]string{
	"jpg":  "jpg",
	"jpeg": "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
	"heic": "heic",
	"avif": "avif",
}

// formatTokens is checked in order; more specific tokens come first so that
// "jpeg" is not shadowed by "jpg" and similar.
var formatTokens = []string{"webp", "avif", "heic", "png", "gif", "jpeg", "jpg"}

var (
	unsafeChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	reservedNames = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[1-9]|lpt[1-9])(\..*)?$`)
)

// ParseHTTPURL parses raw and rejects anything that is not an absolute
// http or https URL.
func ParseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}
	return u, nil
}

// IsHTTPURL reports whether raw is an absolute http(s) URL
func IsHTTPURL(raw string) bool {
	_, err := ParseHTTPURL(raw)
	return err == nil
}

// Resolve resolves ref against base. Protocol-relative and relative
// references are supported; an unparsable ref yields "".
func Resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return r.String()
	}
	return base.ResolveReference(r).String()
}

// Hostname returns the lowercased host of raw without port, or ""
func Hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// HostMatches reports whether host equals pattern or is a subdomain of it
func HostMatches(host, pattern string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	pattern = strings.ToLower(pattern)
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

// identityParams are query parameters that name the resource itself
// rather than sign or size a request: Facebook's safe_image.php target,
// photo and story ids, video ids.
var identityParams = []string{"url", "fbid", "story_fbid", "id", "v"}

// NormalizeURL reduces raw to scheme, lowercased host, path and the
// identity parameters of its query. CDN URLs carry per-request signing
// parameters in the query, so two URLs that differ only there point at
// the same image.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	out := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()

	query := u.Query()
	kept := url.Values{}
	for _, name := range identityParams {
		if v, ok := query[name]; ok {
			kept[name] = v
		}
	}
	if len(kept) > 0 {
		out += "?" + kept.Encode()
	}
	return out
}

// ImageID returns a stable identifier for an image on a platform
func ImageID(platform, rawURL string) string {
	sum := sha256.Sum256([]byte(NormalizeURL(rawURL)))
	return platform + "-" + hex.EncodeToString(sum[:])[:12]
}

// InferExtension guesses the image extension of raw. The path extension
// wins, then a format query parameter, then any known format token in the
// URL, then jpg.
func InferExtension(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return guessFromTokens(strings.ToLower(raw))
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if norm, ok := knownExtensions[ext]; ok {
		return norm
	}

	if format := strings.ToLower(u.Query().Get("format")); format != "" {
		if norm, ok := knownExtensions[format]; ok {
			return norm
		}
	}

	return guessFromTokens(strings.ToLower(raw))
}

func guessFromTokens(lower string) string {
	for _, token := range formatTokens {
		if strings.Contains(lower, token) {
			return knownExtensions[token]
		}
	}
	return "jpg"
}

// SanitizeFilename replaces characters that are unsafe on common
// filesystems with underscores and guards reserved device names.
func SanitizeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return "_"
	}
	if reservedNames.MatchString(name) {
		name = "_" + name
	}
	if len(name) > maxFilenameLength {
		ext := path.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxFilenameLength-len(ext)] + ext
	}
	return name
}

// BuildFilename returns <platform>_image_<YYYYMMDDHHMMSS>_<index>.<ext>
func BuildFilename(platform, rawURL string, index int, at time.Time) string {
	name := fmt.Sprintf("%s_image_%s_%d.%s",
		platform, at.Format(TimestampLayout), index, InferExtension(rawURL))
	return SanitizeFilename(name)
}
