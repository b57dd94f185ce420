package bot

import (
	"fmt"
	"net/url"
	"strings"

	"go-scdl-bot/downloader"
)

// TrackRef describes a validated track link.
type TrackRef struct {
	// RawURL is the URL exactly as the user sent it.
	RawURL string
	// Canonical is the normalized form used for deduplication and caching:
	// https scheme, lowercase host without "www.", no query or fragment.
	Canonical string
	Host      string
	Artist    string
	Slug      string
}

// URLValidator checks that a link points to a single downloadable track on
// one of the allowed hosts. Playlists, sets and bare profile pages are
// rejected before any download is attempted.
type URLValidator struct {
	allowedDomains []string
}

// NewURLValidator creates a validator for the given domain allowlist.
// Subdomains of allowed domains (m.soundcloud.com, on.soundcloud.com) pass.
func NewURLValidator(allowedDomains []string) *URLValidator {
	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &URLValidator{allowedDomains: domains}
}

// Validate parses and checks rawURL, returning a TrackRef on success.
// Failures are returned as DownloadError with type ErrorInvalidURL so the
// error handler can phrase them for the user.
func (v *URLValidator) Validate(rawURL string) (*TrackRef, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, invalidURL(trimmed, "empty URL")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, downloader.NewDownloadErrorWithCause(downloader.ErrorInvalidURL, "URL could not be parsed", err).
			WithContext("url", trimmed)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, invalidURL(trimmed, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, invalidURL(trimmed, "missing host")
	}

	if !v.hostAllowed(host) {
		return nil, invalidURL(trimmed, fmt.Sprintf("host %q is not in the allowed domain list", host))
	}

	artist, slug, err := splitTrackPath(u.Path)
	if err != nil {
		return nil, downloader.NewDownloadError(downloader.ErrorInvalidURL, err.Error()).
			WithContext("url", trimmed)
	}

	canonicalHost := strings.TrimPrefix(host, "www.")
	ref := &TrackRef{
		RawURL:    trimmed,
		Canonical: fmt.Sprintf("https://%s/%s/%s", canonicalHost, artist, slug),
		Host:      canonicalHost,
		Artist:    artist,
		Slug:      slug,
	}
	return ref, nil
}

// hostAllowed reports whether host matches an allowed domain exactly or as
// a subdomain.
func (v *URLValidator) hostAllowed(host string) bool {
	for _, domain := range v.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// splitTrackPath expects a path of the form /artist/track-slug. Anything else
// (profile pages, sets, discovery pages) is rejected.
func splitTrackPath(path string) (artist, slug string, err error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Filter out empty segments from doubled slashes.
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}

	switch len(segments) {
	case 0:
		return "", "", fmt.Errorf("link points to the site root, not a track")
	case 1:
		return "", "", fmt.Errorf("link points to a profile, not a track")
	case 2:
		if segments[0] == "discover" || segments[0] == "search" {
			return "", "", fmt.Errorf("link points to a discovery page, not a track")
		}
		return segments[0], segments[1], nil
	default:
		if segments[1] == "sets" {
			return "", "", fmt.Errorf("playlists and sets are not supported, send a single track link")
		}
		// Extra segments like /artist/track/s-token (private share links) keep
		// the first two components as the track identity.
		return segments[0], segments[1], nil
	}
}

func invalidURL(rawURL, reason string) *downloader.DownloadError {
	return downloader.NewDownloadError(downloader.ErrorInvalidURL, reason).
		WithContext("url", rawURL)
}
