package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
	"github.com/rajinder-mohan/yt2txt/internal/queue"
	"github.com/rajinder-mohan/yt2txt/internal/service"
	"github.com/rajinder-mohan/yt2txt/internal/videoid"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// JobPublisher enqueues transcription jobs for asynchronous processing.
type JobPublisher interface {
	PublishJob(ctx context.Context, job *queue.TranscribeJob) error
}

// TranscriptionService is the slice of the pipeline the HTTP layer uses.
type TranscriptionService interface {
	Transcribe(ctx context.Context, urlOrID string) (*service.Result, error)
	Retry(ctx context.Context, urlOrID string) (*service.Result, error)
	BulkTranscribe(ctx context.Context, inputs []string) []*service.Result
	RetryRateLimited(ctx context.Context, limit int) ([]*service.Result, error)
	GetStatus(ctx context.Context, urlOrID string) (*models.Video, error)
	SetIgnored(ctx context.Context, urlOrID string, ignored bool) (*models.Video, error)
}

// TranscriptionHandler exposes the transcription pipeline over HTTP.
type TranscriptionHandler struct {
	pipeline  TranscriptionService
	repo      repository.VideoRepository
	publisher JobPublisher
}

// NewTranscriptionHandler creates a TranscriptionHandler. publisher may be
// nil when the async path is disabled.
func NewTranscriptionHandler(pipeline TranscriptionService, repo repository.VideoRepository, publisher JobPublisher) *TranscriptionHandler {
	return &TranscriptionHandler{
		pipeline:  pipeline,
		repo:      repo,
		publisher: publisher,
	}
}

// TranscribeRequest accepts video references under any of the historical
// field names; they are merged before processing.
type TranscribeRequest struct {
	Videos    []string `json:"videos"`
	VideoIDs  []string `json:"video_ids"`
	VideoURLs []string `json:"video_urls"`
}

func (r *TranscribeRequest) inputs() []string {
	merged := make([]string, 0, len(r.Videos)+len(r.VideoIDs)+len(r.VideoURLs))
	merged = append(merged, r.Videos...)
	merged = append(merged, r.VideoIDs...)
	merged = append(merged, r.VideoURLs...)
	return merged
}

// TranscribeResponse is the batch result envelope.
type TranscribeResponse struct {
	Count     int               `json:"count"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []*service.Result `json:"results"`
}

// Transcribe handles POST /transcribe: synchronous batch transcription.
func (h *TranscriptionHandler) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	inputs := req.inputs()
	if len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no videos provided"})
		return
	}

	results := h.pipeline.BulkTranscribe(c.Request.Context(), inputs)

	resp := TranscribeResponse{
		Count:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.OK() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	c.JSON(http.StatusOK, resp)
}

// EnqueueResponse reports the accepted asynchronous jobs.
type EnqueueResponse struct {
	Enqueued int      `json:"enqueued"`
	JobIDs   []string `json:"job_ids"`
	Invalid  []string `json:"invalid,omitempty"`
}

// TranscribeAsync handles POST /api/v1/transcribe/async: jobs are queued
// and picked up by the worker.
func (h *TranscriptionHandler) TranscribeAsync(c *gin.Context) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "async processing is not configured"})
		return
	}

	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	inputs := req.inputs()
	if len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no videos provided"})
		return
	}

	ids, invalid := videoid.Normalize(inputs)

	resp := EnqueueResponse{JobIDs: make([]string, 0, len(ids))}
	for input := range invalid {
		resp.Invalid = append(resp.Invalid, input)
	}

	for _, id := range ids {
		job := queue.NewTranscribeJob(id, false)
		if err := h.publisher.PublishJob(c.Request.Context(), job); err != nil {
			logger.Log.Error("failed to enqueue transcription job",
				zap.String("video_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "failed to enqueue job",
				Message: err.Error(),
			})
			return
		}
		resp.Enqueued++
		resp.JobIDs = append(resp.JobIDs, job.ID.String())
	}

	c.JSON(http.StatusAccepted, resp)
}

// VideoResponse is the public view of a stored video.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoResponse struct {
	VideoID         string  `json:"video_id"`
	VideoURL        string  `json:"video_url"`
	Status          string  `json:"status"`
	Transcript      *string `json:"transcript,omitempty"`
	Title           *string `json:"title,omitempty"`
	ChannelName     *string `json:"channel_name,omitempty"`
	DurationSeconds *int64  `json:"duration_seconds,omitempty"`
	ViewCount       *int64  `json:"view_count,omitempty"`
	ErrorMessage    *string `json:"error,omitempty"`
	Ignored         bool    `json:"ignored"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toVideoResponse(v *models.Video) *VideoResponse {
	return &VideoResponse{
		VideoID:         v.VideoID,
		VideoURL:        v.VideoURL,
		Status:          string(v.Status),
		Transcript:      v.Transcript,
		Title:           v.Title,
		ChannelName:     v.ChannelName,
		DurationSeconds: v.DurationSeconds,
		ViewCount:       v.ViewCount,
		ErrorMessage:    v.ErrorMessage,
		Ignored:         v.Ignored,
		CreatedAt:       v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       v.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// GetVideo handles GET /video/:id: the stored snapshot, no side effects.
func (h *TranscriptionHandler) GetVideo(c *gin.Context) {
	video, err := h.pipeline.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "video not found"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid video reference", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toVideoResponse(video))
}

// ListVideos handles GET /api/v1/videos with status and ignored filters.
func (h *TranscriptionHandler) ListVideos(c *gin.Context) {
	filters := &repository.VideoFilters{
		Limit:          parseLimit(c),
		Offset:         parseOffset(c),
		IncludeIgnored: c.Query("include_ignored") == "true",
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status, err := models.ParseStatus(statusStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status filter", Message: err.Error()})
			return
		}
		filters.Status = &status
	}

	videos, total, err := h.repo.List(c.Request.Context(), filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list videos", Message: err.Error()})
		return
	}

	items := make([]*VideoResponse, 0, len(videos))
	for _, v := range videos {
		items = append(items, toVideoResponse(v))
	}

	c.JSON(http.StatusOK, gin.H{
		"videos": items,
		"pagination": PaginatedResponse{
			Count:  len(items),
			Total:  total,
			Limit:  filters.Limit,
			Offset: filters.Offset,
		},
	})
}

// DeleteVideo handles DELETE /api/v1/videos/:id.
func (h *TranscriptionHandler) DeleteVideo(c *gin.Context) {
	id, err := videoid.Extract(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid video reference", Message: err.Error()})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to delete video", Message: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// IgnoreRequest toggles the listing flag on a video.
type IgnoreRequest struct {
	Ignored bool `json:"ignored"`
}

// SetIgnored handles POST /api/v1/videos/:id/ignore.
func (h *TranscriptionHandler) SetIgnored(c *gin.Context) {
	var req IgnoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	video, err := h.pipeline.SetIgnored(c.Request.Context(), c.Param("id"), req.Ignored)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "video not found"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid video reference", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, toVideoResponse(video))
}

// RetryVideo handles POST /api/v1/videos/:id/retry: re-enters processing
// from failed or rate_limited.
func (h *TranscriptionHandler) RetryVideo(c *gin.Context) {
	result, err := h.pipeline.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "video not found"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "retry failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RetryRateLimited handles POST /api/v1/retry-rate-limited: sweeps every
// rate-limited video back through the pipeline.
func (h *TranscriptionHandler) RetryRateLimited(c *gin.Context) {
	results, err := h.pipeline.RetryRateLimited(c.Request.Context(), parseLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "retry sweep failed", Message: err.Error()})
		return
	}

	resp := TranscribeResponse{
		Count:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.OK() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Stats handles GET /api/v1/stats: row counts per status.
func (h *TranscriptionHandler) Stats(c *gin.Context) {
	counts, err := h.repo.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to compute stats", Message: err.Error()})
		return
	}

	var total int64
	byStatus := make(map[string]int64, len(counts))
	for status, count := range counts {
		byStatus[string(status)] = count
		total += count
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"by_status": byStatus,
	})
}
