package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rajinder-mohan/yt2txt/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Transcription *TranscriptionHandler
	Prompts       *PromptHandler
	Content       *ContentHandler
	Health        *HealthHandler
	Auth          *middleware.APIKeyAuth
}

// NewRouter assembles the gin engine. The transcription entrypoints and
// probes are public; everything under /api/v1 requires an API key.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Route on the raw path so URL-encoded video references ("/video/https%3A%2F%2F...")
	// stay one segment; gin still unescapes the param value.
	router.UseRawPath = true

	router.GET("/health", h.Health.LivenessProbe)
	router.GET("/health/ready", h.Health.ReadinessProbe)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/transcribe", h.Transcription.Transcribe)
	router.GET("/video/:id", h.Transcription.GetVideo)

	api := router.Group("/api/v1", h.Auth.Middleware())
	{
		api.POST("/transcribe/async", h.Transcription.TranscribeAsync)
		api.POST("/retry-rate-limited", h.Transcription.RetryRateLimited)
		api.GET("/stats", h.Transcription.Stats)

		api.GET("/videos", h.Transcription.ListVideos)
		api.DELETE("/videos/:id", h.Transcription.DeleteVideo)
		api.POST("/videos/:id/ignore", h.Transcription.SetIgnored)
		api.POST("/videos/:id/retry", h.Transcription.RetryVideo)
		api.GET("/videos/:id/content", h.Content.ListForVideo)

		api.POST("/prompts", h.Prompts.Create)
		api.GET("/prompts", h.Prompts.List)
		api.GET("/prompts/:id", h.Prompts.Get)
		api.PUT("/prompts/:id", h.Prompts.Update)
		api.DELETE("/prompts/:id", h.Prompts.Delete)

		api.POST("/content/generate", h.Content.Generate)
		api.DELETE("/content/:id", h.Content.Delete)
	}

	return router
}
