package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
	"github.com/rajinder-mohan/yt2txt/internal/service"
	"github.com/rajinder-mohan/yt2txt/internal/videoid"
)

// ContentGenerator is the slice of the generation service the HTTP layer uses.
type ContentGenerator interface {
	Generate(ctx context.Context, videoID string, promptID uuid.UUID) (*models.GeneratedContent, error)
	ListForVideo(ctx context.Context, videoID string) ([]*models.GeneratedContent, error)
}

// ContentHandler exposes AI content generation over stored transcripts.
type ContentHandler struct {
	generation ContentGenerator
	repo       repository.GeneratedContentRepository
}

// NewContentHandler creates a ContentHandler.
func NewContentHandler(generation ContentGenerator, repo repository.GeneratedContentRepository) *ContentHandler {
	return &ContentHandler{
		generation: generation,
		repo:       repo,
	}
}

// GenerateRequest asks for content from a video transcript and a prompt.
type GenerateRequest struct {
	VideoID  string `json:"video_id" binding:"required"`
	PromptID string `json:"prompt_id" binding:"required"`
}

// Generate handles POST /api/v1/content/generate.
func (h *ContentHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	id, err := videoid.Extract(req.VideoID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid video reference", Message: err.Error()})
		return
	}

	promptID, err := uuid.Parse(req.PromptID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid prompt id"})
		return
	}

	content, err := h.generation.Generate(c.Request.Context(), id, promptID)
	if err != nil {
		switch {
		case db.IsNotFound(err):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "video or prompt not found"})
		case errors.Is(err, service.ErrNoTranscript):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "video has no transcript", Message: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "generation failed", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, content)
}

// ListForVideo handles GET /api/v1/videos/:id/content.
func (h *ContentHandler) ListForVideo(c *gin.Context) {
	id, err := videoid.Extract(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid video reference", Message: err.Error()})
		return
	}

	contents, err := h.generation.ListForVideo(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list content", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content": contents,
		"count":   len(contents),
	})
}

// Delete handles DELETE /api/v1/content/:id.
func (h *ContentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid content id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "content not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to delete content", Message: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
