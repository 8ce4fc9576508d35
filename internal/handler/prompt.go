package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
)

// PromptHandler handles CRUD operations for prompt templates.
type PromptHandler struct {
	repo repository.PromptRepository
}

// NewPromptHandler creates a PromptHandler.
func NewPromptHandler(repo repository.PromptRepository) *PromptHandler {
	return &PromptHandler{repo: repo}
}

// PromptRequest creates or updates a prompt template.
type PromptRequest struct {
	Name     string `json:"name" binding:"required"`
	Template string `json:"template" binding:"required"`
}

// Create handles POST /api/v1/prompts.
func (h *PromptHandler) Create(c *gin.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	prompt := models.NewPrompt(req.Name, req.Template)
	if err := h.repo.Create(c.Request.Context(), prompt); err != nil {
		if db.IsDuplicateKey(err) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "prompt name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create prompt", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, prompt)
}

// List handles GET /api/v1/prompts.
func (h *PromptHandler) List(c *gin.Context) {
	prompts, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list prompts", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"prompts": prompts,
		"count":   len(prompts),
	})
}

// Get handles GET /api/v1/prompts/:id.
func (h *PromptHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid prompt id"})
		return
	}

	prompt, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "prompt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get prompt", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, prompt)
}

// Update handles PUT /api/v1/prompts/:id.
func (h *PromptHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid prompt id"})
		return
	}

	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	prompt, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "prompt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to get prompt", Message: err.Error()})
		return
	}

	prompt.Name = req.Name
	prompt.Template = req.Template

	if err := h.repo.Update(c.Request.Context(), prompt); err != nil {
		if db.IsDuplicateKey(err) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "prompt name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to update prompt", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, prompt)
}

// Delete handles DELETE /api/v1/prompts/:id.
func (h *PromptHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid prompt id"})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "prompt not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to delete prompt", Message: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
