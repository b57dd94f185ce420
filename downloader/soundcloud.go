package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/grafov/m3u8"
)

const defaultAPIBase = "https://api-v2.soundcloud.com"

var forbiddenNames = regexp.MustCompile(`[\\/<>:"|?*]`)

// scTrack is the subset of the api-v2 track object the bot needs.
type scTrack struct {
	ID           int64  `json:"id"`
	Kind         string `json:"kind"`
	Title        string `json:"title"`
	DurationMS   int64  `json:"duration"`
	ArtworkURL   string `json:"artwork_url"`
	PermalinkURL string `json:"permalink_url"`
	User         struct {
		Username string `json:"username"`
	} `json:"user"`
	Media struct {
		Transcodings []scTranscoding `json:"transcodings"`
	} `json:"media"`
}

// scTranscoding describes one available stream encoding of a track.
type scTranscoding struct {
	URL    string `json:"url"`
	Preset string `json:"preset"`
	Format struct {
		Protocol string `json:"protocol"`
		MimeType string `json:"mime_type"`
	} `json:"format"`
}

// scStream is the response of a transcoding URL request.
type scStream struct {
	URL string `json:"url"`
}

// SoundCloudClient talks to the public api-v2 endpoints: resolve a permalink
// into a track object, then turn a transcoding into a time-limited stream URL.
type SoundCloudClient struct {
	httpClient *http.Client
	apiBase    string
	clientID   string
}

// NewSoundCloudClient creates a client for the given api-v2 client id.
func NewSoundCloudClient(clientID string) *SoundCloudClient {
	return &SoundCloudClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    defaultAPIBase,
		clientID:   clientID,
	}
}

// ResolveTrack resolves a track permalink URL into its api-v2 track object.
func (c *SoundCloudClient) ResolveTrack(ctx context.Context, trackURL string) (*scTrack, error) {
	endpoint := fmt.Sprintf("%s/resolve?url=%s&client_id=%s",
		c.apiBase, url.QueryEscape(trackURL), url.QueryEscape(c.clientID))

	var track scTrack
	if err := c.getJSON(ctx, endpoint, &track); err != nil {
		return nil, err
	}

	if track.Kind != "track" {
		return nil, NewDownloadError(ErrorInvalidURL,
			fmt.Sprintf("URL resolves to %q, not a single track", track.Kind))
	}

	return &track, nil
}

// StreamURL exchanges a transcoding reference for a direct stream URL.
func (c *SoundCloudClient) StreamURL(ctx context.Context, transcoding scTranscoding) (string, error) {
	endpoint := transcoding.URL
	if strings.Contains(endpoint, "?") {
		endpoint += "&client_id=" + url.QueryEscape(c.clientID)
	} else {
		endpoint += "?client_id=" + url.QueryEscape(c.clientID)
	}

	var stream scStream
	if err := c.getJSON(ctx, endpoint, &stream); err != nil {
		return "", err
	}

	if stream.URL == "" {
		return "", NewDownloadError(ErrorExtractionFailure, "transcoding response contained no stream URL")
	}

	return stream.URL, nil
}

// getJSON performs a GET request and decodes the JSON response body.
func (c *SoundCloudClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return NewDownloadErrorWithCause(ErrorUnknown, "failed to build API request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyHTTPError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return NewDownloadError(ErrorInvalidURL, "track not found")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewDownloadError(ErrorExtractionFailure, "API rejected the client id")
	case resp.StatusCode != http.StatusOK:
		return NewDownloadError(ErrorNetworkFailure,
			fmt.Sprintf("API returned unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewDownloadErrorWithCause(ErrorExtractionFailure, "failed to decode API response", err)
	}

	return nil
}

// SoundCloudDownloader implements TrackDownloader natively against the
// SoundCloud api-v2 endpoints, without the external yt-dlp binary. It prefers
// the progressive MP3 transcoding and falls back to the HLS MP3 stream.
type SoundCloudDownloader struct {
	client *SoundCloudClient
	logger *log.Logger
}

// NewSoundCloudDownloader creates a new SoundCloudDownloader instance
func NewSoundCloudDownloader(client *SoundCloudClient, logger *log.Logger) *SoundCloudDownloader {
	return &SoundCloudDownloader{
		client: client,
		logger: logger,
	}
}

// Name identifies the extractor for logging and status output.
func (d *SoundCloudDownloader) Name() string {
	return "soundcloud"
}

// Download resolves the track and fetches its MP3 stream into dir.
func (d *SoundCloudDownloader) Download(ctx context.Context, trackURL string, dir string, callbacks ProgressCallbacks) (*DownloadResult, error) {
	startTime := time.Now()

	reportPhase(callbacks, PhaseValidating, PhaseResolving)

	track, err := d.client.ResolveTrack(ctx, trackURL)
	if err != nil {
		reportError(callbacks, err)
		return nil, err
	}

	transcoding, ok := pickTranscoding(track.Media.Transcodings)
	if !ok {
		derr := NewDownloadError(ErrorExtractionFailure, "track has no MP3 transcoding")
		reportError(callbacks, derr)
		return nil, derr
	}

	streamURL, err := d.client.StreamURL(ctx, transcoding)
	if err != nil {
		reportError(callbacks, err)
		return nil, err
	}

	reportPhase(callbacks, PhaseResolving, PhaseDownloading)

	filePath := filepath.Join(dir, sanitizeFileName(track.Title)+".mp3")

	switch transcoding.Format.Protocol {
	case "progressive":
		err = d.fetchProgressive(ctx, streamURL, filePath, callbacks)
	case "hls":
		err = d.fetchHLS(ctx, streamURL, filePath, callbacks)
	default:
		err = NewDownloadError(ErrorExtractionFailure,
			fmt.Sprintf("unsupported stream protocol: %s", transcoding.Format.Protocol))
	}
	if err != nil {
		reportError(callbacks, err)
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		derr := NewDownloadErrorWithCause(ErrorFileSystemError, "failed to stat downloaded file", err)
		reportError(callbacks, derr)
		return nil, derr
	}

	result := &DownloadResult{
		FilePath: filePath,
		TrackMeta: &TrackMetadata{
			Title:        track.Title,
			Artist:       track.User.Username,
			Duration:     time.Duration(track.DurationMS) * time.Millisecond,
			ArtworkURL:   track.ArtworkURL,
			PermalinkURL: track.PermalinkURL,
		},
		Elapsed:  time.Since(startTime),
		FileSize: info.Size(),
		Format:   "mp3",
	}

	if callbacks.OnComplete != nil {
		callbacks.OnComplete(result)
	}

	return result, nil
}

// fetchProgressive streams a direct MP3 URL to disk with progress reporting.
func (d *SoundCloudDownloader) fetchProgressive(ctx context.Context, streamURL, filePath string, callbacks ProgressCallbacks) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return NewDownloadErrorWithCause(ErrorUnknown, "failed to build stream request", err)
	}

	resp, err := d.client.httpClient.Do(req)
	if err != nil {
		return classifyHTTPError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewDownloadError(ErrorNetworkFailure,
			fmt.Sprintf("stream returned unexpected status %d", resp.StatusCode))
	}

	out, err := os.Create(filePath)
	if err != nil {
		return NewDownloadErrorWithCause(ErrorFileSystemError, "failed to create output file", err)
	}
	defer out.Close()

	writer := &progressWriter{
		dst:       out,
		total:     resp.ContentLength,
		started:   time.Now(),
		callbacks: callbacks,
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		return classifyHTTPError(ctx, err)
	}

	return nil
}

// fetchHLS downloads an HLS MP3 playlist segment by segment. SoundCloud's HLS
// MP3 segments are plain MPEG audio frames, so concatenation yields a valid
// MP3 file.
func (d *SoundCloudDownloader) fetchHLS(ctx context.Context, playlistURL, filePath string, callbacks ProgressCallbacks) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return NewDownloadErrorWithCause(ErrorUnknown, "failed to build playlist request", err)
	}

	resp, err := d.client.httpClient.Do(req)
	if err != nil {
		return classifyHTTPError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewDownloadError(ErrorNetworkFailure,
			fmt.Sprintf("playlist returned unexpected status %d", resp.StatusCode))
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return NewDownloadErrorWithCause(ErrorExtractionFailure, "failed to parse HLS playlist", err)
	}
	if listType != m3u8.MEDIA {
		return NewDownloadError(ErrorExtractionFailure, "expected a media playlist")
	}

	media := playlist.(*m3u8.MediaPlaylist)

	base, err := url.Parse(playlistURL)
	if err != nil {
		return NewDownloadErrorWithCause(ErrorExtractionFailure, "invalid playlist URL", err)
	}

	out, err := os.Create(filePath)
	if err != nil {
		return NewDownloadErrorWithCause(ErrorFileSystemError, "failed to create output file", err)
	}
	defer out.Close()

	var segments []string
	for _, segment := range media.Segments {
		if segment == nil {
			continue
		}
		segURL, err := base.Parse(segment.URI)
		if err != nil {
			return NewDownloadErrorWithCause(ErrorExtractionFailure, "invalid segment URI", err)
		}
		segments = append(segments, segURL.String())
	}

	if len(segments) == 0 {
		return NewDownloadError(ErrorExtractionFailure, "playlist contains no segments")
	}

	var written int64
	for i, segURL := range segments {
		n, err := d.fetchSegment(ctx, segURL, out)
		if err != nil {
			return err
		}
		written += n

		reportProgress(callbacks, PhaseDownloading, Progress{
			BytesProcessed: written,
			Percentage:     float64(i+1) / float64(len(segments)) * 100,
		})
	}

	return nil
}

// fetchSegment appends one segment to the output file.
func (d *SoundCloudDownloader) fetchSegment(ctx context.Context, segURL string, out io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segURL, nil)
	if err != nil {
		return 0, NewDownloadErrorWithCause(ErrorUnknown, "failed to build segment request", err)
	}

	resp, err := d.client.httpClient.Do(req)
	if err != nil {
		return 0, classifyHTTPError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, NewDownloadError(ErrorNetworkFailure,
			fmt.Sprintf("segment returned unexpected status %d", resp.StatusCode))
	}

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return n, classifyHTTPError(ctx, err)
	}
	return n, nil
}

// pickTranscoding chooses the best MP3 transcoding: progressive first, then
// HLS. Opus-only tracks are rejected by the caller.
func pickTranscoding(transcodings []scTranscoding) (scTranscoding, bool) {
	var hls scTranscoding
	var hasHLS bool

	for _, t := range transcodings {
		if !strings.Contains(t.Format.MimeType, "mpeg") && !strings.HasPrefix(t.Preset, "mp3") {
			continue
		}
		switch t.Format.Protocol {
		case "progressive":
			return t, true
		case "hls":
			if !hasHLS {
				hls = t
				hasHLS = true
			}
		}
	}

	return hls, hasHLS
}

// sanitizeFileName strips characters that are unsafe in file names.
func sanitizeFileName(name string) string {
	clean := forbiddenNames.ReplaceAllString(name, "_")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		clean = "track"
	}
	return clean
}

// classifyHTTPError maps a transport failure onto a structured DownloadError.
func classifyHTTPError(ctx context.Context, err error) *DownloadError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewDownloadErrorWithCause(ErrorTimeout, "download exceeded the configured timeout", err)
	case errors.Is(ctx.Err(), context.Canceled):
		return NewDownloadErrorWithCause(ErrorCancelled, "download was cancelled", err)
	default:
		return NewDownloadErrorWithCause(ErrorNetworkFailure, "network failure while downloading", err)
	}
}

// progressWriter reports byte counts to the progress callbacks as data flows
// to disk.
type progressWriter struct {
	dst       io.Writer
	total     int64
	written   int64
	started   time.Time
	callbacks ProgressCallbacks
	lastSent  time.Time
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.written += int64(n)

	// Throttle callback frequency; the tracker also coalesces updates.
	if time.Since(w.lastSent) < 250*time.Millisecond && err == nil {
		return n, err
	}
	w.lastSent = time.Now()

	progress := Progress{
		BytesProcessed: w.written,
		TotalBytes:     w.total,
	}
	if w.total > 0 {
		progress.Percentage = float64(w.written) / float64(w.total) * 100
	}
	if elapsed := time.Since(w.started); elapsed > 0 {
		progress.Speed = int64(float64(w.written) / elapsed.Seconds())
	}
	if progress.Speed > 0 && w.total > w.written {
		progress.ETA = time.Duration((w.total-w.written)/progress.Speed) * time.Second
	}

	reportProgress(w.callbacks, PhaseDownloading, progress)
	return n, err
}
