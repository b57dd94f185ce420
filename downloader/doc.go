// Package downloader provides the media-extraction side of the bot: fetching
// a track from an allowed source URL and producing a local MP3 file with
// progress reporting along the way.
//
// The package defines core interfaces and data structures for:
//   - TrackDownloader: download functionality with progress callbacks
//   - ProgressReporter: progress reporting interface for external systems
//   - Error handling with structured DownloadError types
//   - A scoped WorkDir for temp files that are removed on every exit path
//
// Two TrackDownloader implementations exist: one shelling out to yt-dlp and a
// native SoundCloud client that resolves tracks through the api-v2 endpoint.
package downloader
