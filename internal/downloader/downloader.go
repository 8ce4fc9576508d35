// Package downloader fetches YouTube audio streams to local files.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	youtube "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/db/models"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// Config holds downloader settings. It is passed in explicitly at
// construction; the downloader carries no process-global state.
type Config struct {
	// AudioDir is where audio artifacts are written.
	AudioDir string
	// MaxAudioBytes caps the size of a single audio stream.
	MaxAudioBytes int64
	// HTTPTimeout bounds stream requests.
	HTTPTimeout time.Duration
}

// YouTubeDownloader downloads the best audio-only stream for a video.
type YouTubeDownloader struct {
	client *youtube.Client
	cfg    Config
}

// New creates a YouTubeDownloader and ensures the audio directory exists.
func New(cfg Config) (*YouTubeDownloader, error) {
	if cfg.AudioDir == "" {
		cfg.AudioDir = "audio_downloads"
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 100 * 1024 * 1024
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Minute
	}

	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	return &YouTubeDownloader{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		},
		cfg: cfg,
	}, nil
}

// Download fetches metadata and the highest-bitrate audio format for the
// video, writing the stream to <AudioDir>/<videoID>.<ext>. The file path and
// the metadata are returned together; metadata is valid even if the caller
// later fails to transcribe.
func (d *YouTubeDownloader) Download(ctx context.Context, videoID string) (string, *models.VideoMetadata, error) {
	video, err := d.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", nil, fmt.Errorf("fetch video metadata: %w", err)
	}

	meta := &models.VideoMetadata{
		Title:           video.Title,
		ChannelName:     video.Author,
		DurationSeconds: int64(video.Duration / time.Second),
		ViewCount:       int64(video.Views),
		UploadDate:      video.PublishDate,
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return "", meta, fmt.Errorf("no audio formats available for %s", videoID)
	}

	best := formats[0]
	for _, f := range formats {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}

	stream, _, err := d.client.GetStreamContext(ctx, video, &best)
	if err != nil {
		return "", meta, fmt.Errorf("open audio stream: %w", err)
	}
	defer stream.Close()

	path := filepath.Join(d.cfg.AudioDir, videoID+extensionFor(best.MimeType))

	out, err := os.Create(path)
	if err != nil {
		return "", meta, fmt.Errorf("create audio file: %w", err)
	}

	limited := io.LimitReader(stream, d.cfg.MaxAudioBytes+1)
	n, err := io.Copy(out, limited)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", meta, fmt.Errorf("write audio stream: %w", err)
	}
	if n > d.cfg.MaxAudioBytes {
		os.Remove(path)
		return "", meta, fmt.Errorf("audio stream exceeds %d byte limit", d.cfg.MaxAudioBytes)
	}

	logger.Log.Debug("downloaded audio",
		zap.String("video_id", videoID),
		zap.String("path", path),
		zap.Int64("bytes", n),
	)

	return path, meta, nil
}

// extensionFor maps an audio MIME type to a file extension.
func extensionFor(mimeType string) string {
	base := strings.TrimSpace(strings.Split(mimeType, ";")[0])
	switch base {
	case "audio/mp4":
		return ".m4a"
	case "audio/webm":
		return ".webm"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".m4a"
	}
}

// MimeTypeFor maps a stored audio file back to the MIME type sent to the
// transcriber.
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".webm":
		return "audio/webm"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/mp4"
	}
}
