package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rajinder-mohan/yt2txt/internal/db/models"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
	"github.com/rajinder-mohan/yt2txt/internal/generator"
	"github.com/rajinder-mohan/yt2txt/internal/metrics"
	"github.com/rajinder-mohan/yt2txt/pkg/logger"
)

// ErrNoTranscript is returned when generation is requested for a video
// that has not been transcribed yet.
var ErrNoTranscript = errors.New("video has no transcript")

// Generator produces text from a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*generator.Result, error)
}

// GenerationService renders stored prompt templates against transcripts
// and persists the generated output.
type GenerationService struct {
	videos    repository.VideoRepository
	prompts   repository.PromptRepository
	contents  repository.GeneratedContentRepository
	generator Generator
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(
	videos repository.VideoRepository,
	prompts repository.PromptRepository,
	contents repository.GeneratedContentRepository,
	gen Generator,
) *GenerationService {
	return &GenerationService{
		videos:    videos,
		prompts:   prompts,
		contents:  contents,
		generator: gen,
	}
}

// Generate renders the prompt template with the video's transcript and
// metadata, calls the text generator, and stores the result.
func (s *GenerationService) Generate(ctx context.Context, videoID string, promptID uuid.UUID) (*models.GeneratedContent, error) {
	video, err := s.videos.GetByVideoID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !video.HasTranscript() {
		return nil, fmt.Errorf("%w: video %s has status %s", ErrNoTranscript, videoID, video.Status)
	}

	prompt, err := s.prompts.GetByID(ctx, promptID)
	if err != nil {
		return nil, err
	}

	rendered := RenderTemplate(prompt.Template, video)

	metrics.ExternalCalls.WithLabelValues(metrics.CollaboratorGenerator).Inc()
	result, err := s.generator.Generate(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	content := models.NewGeneratedContent(videoID, promptID, result.Model, result.Content)
	content.PromptTokens = result.PromptTokens
	content.CompletionTokens = result.CompletionTokens
	content.TotalTokens = result.TotalTokens

	if err := s.contents.Create(ctx, content); err != nil {
		return nil, err
	}

	logger.Log.Info("content generated",
		zap.String("video_id", videoID),
		zap.String("prompt", prompt.Name),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return content, nil
}

// ListForVideo returns all generated content for a video.
func (s *GenerationService) ListForVideo(ctx context.Context, videoID string) ([]*models.GeneratedContent, error) {
	return s.contents.ListByVideoID(ctx, videoID)
}

// RenderTemplate substitutes transcript and metadata placeholders in a
// prompt template. Unknown placeholders are left untouched.
func RenderTemplate(template string, video *models.Video) string {
	transcript := ""
	if video.Transcript != nil {
		transcript = *video.Transcript
	}
	title := ""
	if video.Title != nil {
		title = *video.Title
	}
	channel := ""
	if video.ChannelName != nil {
		channel = *video.ChannelName
	}

	replacer := strings.NewReplacer(
		"{transcript}", transcript,
		"{title}", title,
		"{channel}", channel,
		"{video_id}", video.VideoID,
		"{video_url}", video.VideoURL,
	)
	return replacer.Replace(template)
}
