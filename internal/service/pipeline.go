// Package service implements the transcription pipeline and content
// generation on top of the repositories and external collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/classify"
	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
	"github.com/rajinder-mohan/yt2txt/internal/downloader"
	"github.com/rajinder-mohan/yt2txt/internal/metrics"
	"github.com/rajinder-mohan/yt2txt/internal/videoid"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// Downloader fetches a video's audio artifact and metadata.
// Metadata may be non-nil even when the download itself failed.
type Downloader interface {
	Download(ctx context.Context, videoID string) (audioPath string, meta *models.VideoMetadata, err error)
}

// Transcriber converts a local audio artifact into transcript text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, audioPath, mimeType string) (string, error)
}

// PipelineConfig holds the pipeline's timing knobs.
type PipelineConfig struct {
	// RequestDelay is the fixed pause between videos in a batch.
	RequestDelay time.Duration
	// CallTimeout bounds one download+transcribe sequence.
	CallTimeout time.Duration
	// StaleProcessingAfter is when an in-flight attempt counts as orphaned.
	StaleProcessingAfter time.Duration
}

// Result is the caller-facing outcome of one transcription request.
// External failures are captured here, never surfaced as errors.
type Result struct {
	VideoID      string        `json:"video_id"`
	VideoURL     string        `json:"video_url,omitempty"`
	Status       models.Status `json:"status"`
	Transcript   string        `json:"transcript,omitempty"`
	ErrorMessage string        `json:"error,omitempty"`
	FromCache    bool          `json:"from_cache"`
	InFlight     bool          `json:"in_flight,omitempty"`
}

// OK reports whether the result carries a transcript.
func (r *Result) OK() bool {
	return r.Status == models.StatusSuccess
}

// Pipeline orchestrates download, transcription, and status tracking.
type Pipeline struct {
	repo        repository.VideoRepository
	downloader  Downloader
	transcriber Transcriber
	cfg         PipelineConfig
}

// NewPipeline creates a Pipeline.
func NewPipeline(repo repository.VideoRepository, dl Downloader, tr Transcriber, cfg PipelineConfig) *Pipeline {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Minute
	}
	if cfg.StaleProcessingAfter <= 0 {
		cfg.StaleProcessingAfter = 15 * time.Minute
	}
	return &Pipeline{
		repo:        repo,
		downloader:  dl,
		transcriber: tr,
		cfg:         cfg,
	}
}

// Transcribe runs the fetch gate for one video ID or URL. Cached outcomes
// (a stored transcript, a stored failure, or an attempt already in flight)
// short-circuit without touching any external collaborator. Only persistent
// store failures (and unparseable inputs) are returned as errors.
func (p *Pipeline) Transcribe(ctx context.Context, urlOrID string) (*Result, error) {
	return p.transcribe(ctx, urlOrID, false)
}

// Retry is the explicit operator-triggered request that may re-enter
// processing from failed or rate_limited.
func (p *Pipeline) Retry(ctx context.Context, urlOrID string) (*Result, error) {
	return p.transcribe(ctx, urlOrID, true)
}

func (p *Pipeline) transcribe(ctx context.Context, urlOrID string, allowRetry bool) (*Result, error) {
	id, err := videoid.Extract(urlOrID)
	if err != nil {
		metrics.TranscriptionResults.WithLabelValues("invalid").Inc()
		return nil, err
	}

	video, err := p.lookupOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	// Short-circuit on locally known outcomes.
	if res := p.cachedResult(video, allowRetry); res != nil {
		return res, nil
	}

	staleBefore := time.Now().Add(-p.cfg.StaleProcessingAfter)
	acquired, err := p.repo.AcquireForProcessing(ctx, id, staleBefore, allowRetry)
	if err != nil {
		return nil, err
	}
	if !acquired {
		// A concurrent request won the conditional update. Report the
		// current snapshot instead of making a second external call.
		current, err := p.repo.GetByVideoID(ctx, id)
		if err != nil {
			return nil, err
		}
		if res := p.cachedResult(current, allowRetry); res != nil {
			return res, nil
		}
		metrics.TranscriptionResults.WithLabelValues("in_flight").Inc()
		return &Result{
			VideoID:  id,
			VideoURL: current.VideoURL,
			Status:   current.Status,
			InFlight: current.Status == models.StatusProcessing,
		}, nil
	}

	return p.process(ctx, video), nil
}

// lookupOrCreate returns the existing record or creates a pending one.
// A create racing another request folds into re-reading the winner's row.
func (p *Pipeline) lookupOrCreate(ctx context.Context, id string) (*models.Video, error) {
	video, err := p.repo.GetByVideoID(ctx, id)
	if err == nil {
		return video, nil
	}
	if !db.IsNotFound(err) {
		return nil, err
	}

	video = models.NewVideo(id)
	if err := p.repo.Create(ctx, video); err != nil {
		if db.IsDuplicateKey(err) {
			return p.repo.GetByVideoID(ctx, id)
		}
		return nil, err
	}
	return video, nil
}

// cachedResult returns a short-circuit result when the record's status
// resolves the request locally, or nil when the pipeline should proceed.
func (p *Pipeline) cachedResult(video *models.Video, allowRetry bool) *Result {
	switch {
	case video.Status == models.StatusSuccess && video.HasTranscript():
		metrics.TranscriptionResults.WithLabelValues("cache_hit").Inc()
		return &Result{
			VideoID:    video.VideoID,
			VideoURL:   video.VideoURL,
			Status:     models.StatusSuccess,
			Transcript: *video.Transcript,
			FromCache:  true,
		}

	case video.Status.Retryable() && !allowRetry:
		metrics.TranscriptionResults.WithLabelValues("cached_error").Inc()
		msg := "previous attempt failed"
		if video.ErrorMessage != nil {
			msg = *video.ErrorMessage
		}
		return &Result{
			VideoID:      video.VideoID,
			VideoURL:     video.VideoURL,
			Status:       video.Status,
			ErrorMessage: msg,
			FromCache:    true,
		}

	case video.Status == models.StatusProcessing &&
		!video.ProcessingStaleSince(time.Now().Add(-p.cfg.StaleProcessingAfter)):
		metrics.TranscriptionResults.WithLabelValues("in_flight").Inc()
		return &Result{
			VideoID:  video.VideoID,
			VideoURL: video.VideoURL,
			Status:   models.StatusProcessing,
			InFlight: true,
		}
	}

	return nil
}

// process runs the external download+transcribe sequence for a video this
// caller owns (status is processing). Failures are classified and persisted,
// never returned.
func (p *Pipeline) process(ctx context.Context, video *models.Video) *Result {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	audioPath, err := p.fetchAudio(callCtx, video)
	if err != nil {
		return p.fail(ctx, video, fmt.Errorf("download audio: %w", err))
	}

	metrics.ExternalCalls.WithLabelValues(metrics.CollaboratorTranscriber).Inc()
	start := time.Now()
	transcript, err := p.transcriber.TranscribeFile(callCtx, audioPath, downloader.MimeTypeFor(audioPath))
	metrics.ExternalCallDuration.WithLabelValues(metrics.CollaboratorTranscriber).Observe(time.Since(start).Seconds())
	if err != nil {
		// Audio is kept on disk so a later retry can skip the download.
		return p.fail(ctx, video, fmt.Errorf("transcribe audio: %w", err))
	}

	if err := p.repo.MarkSuccess(ctx, video.VideoID, transcript); err != nil {
		if errors.Is(err, repository.ErrLostOwnership) {
			logger.Log.Warn("attempt was reclaimed before completion",
				zap.String("video_id", video.VideoID))
		} else {
			logger.Log.Error("failed to persist transcript",
				zap.String("video_id", video.VideoID), zap.Error(err))
		}
	} else if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn("could not delete audio artifact",
			zap.String("path", audioPath), zap.Error(err))
	}

	metrics.TranscriptionResults.WithLabelValues("success").Inc()
	logger.Log.Info("video transcribed",
		zap.String("video_id", video.VideoID),
		zap.Int("transcript_chars", len(transcript)),
	)

	return &Result{
		VideoID:    video.VideoID,
		VideoURL:   video.VideoURL,
		Status:     models.StatusSuccess,
		Transcript: transcript,
	}
}

// fetchAudio reuses a previously downloaded artifact when present,
// otherwise downloads and persists metadata opportunistically.
func (p *Pipeline) fetchAudio(ctx context.Context, video *models.Video) (string, error) {
	if video.AudioPath != nil && *video.AudioPath != "" {
		if _, err := os.Stat(*video.AudioPath); err == nil {
			logger.Log.Debug("reusing cached audio artifact",
				zap.String("video_id", video.VideoID),
				zap.String("path", *video.AudioPath))
			return *video.AudioPath, nil
		}
	}

	metrics.ExternalCalls.WithLabelValues(metrics.CollaboratorDownloader).Inc()
	start := time.Now()
	audioPath, meta, err := p.downloader.Download(ctx, video.VideoID)
	metrics.ExternalCallDuration.WithLabelValues(metrics.CollaboratorDownloader).Observe(time.Since(start).Seconds())

	// Metadata is stored whenever the fetch produced it, independent of
	// the transcription outcome.
	if meta != nil {
		if uerr := p.repo.UpdateMetadata(ctx, video.VideoID, meta, audioPath); uerr != nil {
			logger.Log.Warn("failed to persist video metadata",
				zap.String("video_id", video.VideoID), zap.Error(uerr))
		}
	}

	return audioPath, err
}

// fail classifies the error, persists the terminal status, and builds the
// caller-facing result.
func (p *Pipeline) fail(ctx context.Context, video *models.Video, err error) *Result {
	status, msg := classify.Failure(err)
	metrics.TranscriptionResults.WithLabelValues(string(status)).Inc()

	if merr := p.repo.MarkFailure(ctx, video.VideoID, status, msg); merr != nil {
		if errors.Is(merr, repository.ErrLostOwnership) {
			logger.Log.Warn("attempt was reclaimed before failure could be recorded",
				zap.String("video_id", video.VideoID))
		} else {
			logger.Log.Error("failed to persist failure",
				zap.String("video_id", video.VideoID), zap.Error(merr))
		}
	}

	logger.Log.Warn("video processing failed",
		zap.String("video_id", video.VideoID),
		zap.String("status", string(status)),
		zap.String("error", msg),
	)

	return &Result{
		VideoID:      video.VideoID,
		VideoURL:     video.VideoURL,
		Status:       status,
		ErrorMessage: msg,
	}
}

// BulkTranscribe processes inputs independently: one video's failure never
// aborts the batch. The configured delay is applied before every video
// after the first, regardless of the previous outcome.
func (p *Pipeline) BulkTranscribe(ctx context.Context, inputs []string) []*Result {
	ids, invalid := videoid.Normalize(inputs)

	results := make([]*Result, 0, len(ids)+len(invalid))
	for input, err := range invalid {
		metrics.TranscriptionResults.WithLabelValues("invalid").Inc()
		results = append(results, &Result{
			VideoID:      input,
			Status:       models.StatusFailed,
			ErrorMessage: err.Error(),
		})
	}

	for i, id := range ids {
		if i > 0 && p.cfg.RequestDelay > 0 {
			if !sleepCtx(ctx, p.cfg.RequestDelay) {
				results = append(results, skippedResults(ids[i:], ctx.Err())...)
				return results
			}
		}
		if ctx.Err() != nil {
			results = append(results, skippedResults(ids[i:], ctx.Err())...)
			return results
		}

		res, err := p.Transcribe(ctx, id)
		if err != nil {
			// Store-level failure: recorded per video, batch continues.
			results = append(results, &Result{
				VideoID:      id,
				Status:       models.StatusFailed,
				ErrorMessage: err.Error(),
			})
			continue
		}
		results = append(results, res)
	}

	return results
}

// RetryRateLimited sweeps rate-limited videos back through the pipeline
// with the same inter-call delay as a regular batch.
func (p *Pipeline) RetryRateLimited(ctx context.Context, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 100
	}

	videos, err := p.repo.ListByStatus(ctx, models.StatusRateLimited, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(videos))
	for i, video := range videos {
		if i > 0 && p.cfg.RequestDelay > 0 {
			if !sleepCtx(ctx, p.cfg.RequestDelay) {
				return results, ctx.Err()
			}
		}

		res, err := p.Retry(ctx, video.VideoID)
		if err != nil {
			results = append(results, &Result{
				VideoID:      video.VideoID,
				Status:       models.StatusFailed,
				ErrorMessage: err.Error(),
			})
			continue
		}
		results = append(results, res)
	}

	return results, nil
}

// GetStatus returns the stored snapshot without creating a row.
func (p *Pipeline) GetStatus(ctx context.Context, urlOrID string) (*models.Video, error) {
	id, err := videoid.Extract(urlOrID)
	if err != nil {
		return nil, err
	}
	return p.repo.GetByVideoID(ctx, id)
}

// SetIgnored flips the ignored flag; status and transcript are untouched.
func (p *Pipeline) SetIgnored(ctx context.Context, urlOrID string, ignored bool) (*models.Video, error) {
	id, err := videoid.Extract(urlOrID)
	if err != nil {
		return nil, err
	}
	if err := p.repo.SetIgnored(ctx, id, ignored); err != nil {
		return nil, err
	}
	return p.repo.GetByVideoID(ctx, id)
}

// sleepCtx sleeps for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func skippedResults(ids []string, err error) []*Result {
	msg := "batch cancelled"
	if err != nil {
		msg = err.Error()
	}
	skipped := make([]*Result, 0, len(ids))
	for _, id := range ids {
		metrics.TranscriptionResults.WithLabelValues("skipped").Inc()
		skipped = append(skipped, &Result{
			VideoID:      id,
			Status:       models.StatusPending,
			ErrorMessage: msg,
		})
	}
	return skipped
}
